package msp

// MSP command codes used against a Betaflight FC.
const (
	CodeAPIVersion      = 1
	CodeFCVariant       = 2
	CodeDataflashSummary = 70
	CodeDataflashErase   = 71
	CodeDataflashRead    = 72
	CodeBlackboxConfig   = 80
	CodeUID              = 160
)

// Dataflash summary flag bits (FlashSummary.Flags).
const (
	DataflashFlagSupported = 0x01
	DataflashFlagReady     = 0x02
)

// Flash-chunk compression types carried in the DATAFLASH_READ response.
const (
	CompressionNone    = 0
	CompressionHuffman = 1
)

// BTFLVariant is the 4-byte FC_VARIANT payload a Betaflight FC reports.
const BTFLVariant = "BTFL"

// Blackbox device types reported by MSP_BLACKBOX_CONFIG.
const (
	BlackboxDeviceNone   = 0
	BlackboxDeviceSDCard = 2
)

// Frame directions, as they appear on the wire after '$'M'/'X'.
const (
	DirToFC   = '<'
	DirFromFC = '>'
	DirError  = '!'
)
