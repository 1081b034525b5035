package rf95

// LoRa mode register map (SX1276/77/78/79 datasheet, table 85).
const (
	RegFifo                = 0x00
	RegOpMode              = 0x01
	RegFrfMsb              = 0x06
	RegFrfMid              = 0x07
	RegFrfLsb              = 0x08
	RegPaConfig            = 0x09
	RegPaRamp              = 0x0a
	RegOcp                 = 0x0b
	RegLna                 = 0x0c
	RegFifoAddrPtr         = 0x0d
	RegFifoTxBaseAddr      = 0x0e
	RegFifoRxBaseAddr      = 0x0f
	RegFifoRxCurrentAddr   = 0x10
	RegIrqFlagsMask        = 0x11
	RegIrqFlags            = 0x12
	RegRxNbBytes           = 0x13
	RegRxHeaderCntValueMsb = 0x14
	RegRxHeaderCntValueLsb = 0x15
	RegRxPacketCntValueMsb = 0x16
	RegRxPacketCntValueLsb = 0x17
	RegModemStat           = 0x18
	RegPktSnrValue         = 0x19
	RegPktRssiValue        = 0x1a
	RegRssiValue           = 0x1b
	RegHopChannel          = 0x1c
	RegModemConfig1        = 0x1d
	RegModemConfig2        = 0x1e
	RegSymbTimeoutLsb      = 0x1f
	RegPreambleMsb         = 0x20
	RegPreambleLsb         = 0x21
	RegPayloadLength       = 0x22
	RegMaxPayloadLength    = 0x23
	RegHopPeriod           = 0x24
	RegFifoRxByteAddr      = 0x25
	RegModemConfig3        = 0x26
	RegFreqError           = 0x28
	RegDetectOpt           = 0x31
	RegDetectionThreshold  = 0x37
	RegDioMapping1         = 0x40
	RegDioMapping2         = 0x41
	RegVersion             = 0x42
	RegTcxo                = 0x4b
	RegPaDac               = 0x4d
	RegFormerTemp          = 0x5b
	RegAgcRef              = 0x61
	RegAgcThresh1          = 0x62
	RegAgcThresh2          = 0x63
	RegAgcThresh3          = 0x64
)

// RegOpMode bits.
const (
	LongRangeMode   = 0x80
	AccessSharedReg = 0x40

	opModeMask         = 0x07
	OpSleep            = 0x00
	OpStandby          = 0x01
	OpFrequencySynthTx = 0x02
	OpTx               = 0x03
	OpFrequencySynthRx = 0x04
	OpRxContinuous     = 0x05
	OpRxSingle         = 0x06
	OpCAD              = 0x07
)

// RegPaConfig bits.
const (
	PaSelect    = 0x80
	MaxPower    = 0x70
	OutputPower = 0x0f
)

// RegPaDac values. The high power DAC adds about 3dBm to every level.
const (
	PaDacDisable = 0x04
	PaDacEnable  = 0x07
)

// RegIrqFlags bits.
const (
	IrqRxTimeout         = 0x80
	IrqRxDone            = 0x40
	IrqPayloadCrcError   = 0x20
	IrqValidHeader       = 0x10
	IrqTxDone            = 0x08
	IrqCadDone           = 0x04
	IrqFhssChangeChannel = 0x02
	IrqCadDetected       = 0x01

	irqClearAll = 0xff
)

// RegModemStat bits.
const (
	ModemStatusClear              = 0x10
	ModemStatusHeaderInfoValid    = 0x08
	ModemStatusRxOngoing          = 0x04
	ModemStatusSignalSynchronized = 0x02
	ModemStatusSignalDetected     = 0x01
)

// RegDioMapping1 values for DIO0.
const (
	DioRxDone  = 0x00
	DioTxDone  = 0x40
	DioCadDone = 0x80
)

// Bandwidth occupies bits 7-4 of RegModemConfig1.
type Bandwidth byte

const (
	Bw7k8   Bandwidth = 0x00
	Bw10k4  Bandwidth = 0x10
	Bw15k6  Bandwidth = 0x20
	Bw20k8  Bandwidth = 0x30
	Bw31k25 Bandwidth = 0x40
	Bw41k7  Bandwidth = 0x50
	Bw62k5  Bandwidth = 0x60
	Bw125k  Bandwidth = 0x70
	Bw250k  Bandwidth = 0x80
	Bw500k  Bandwidth = 0x90
)

// CodingRate occupies bits 3-1 of RegModemConfig1.
type CodingRate byte

const (
	CodingRate4_5 CodingRate = 0x02
	CodingRate4_6 CodingRate = 0x04
	CodingRate4_7 CodingRate = 0x06
	CodingRate4_8 CodingRate = 0x08
)

// HeaderMode is bit 0 of RegModemConfig1.
type HeaderMode byte

const (
	HeaderExplicit HeaderMode = 0x00
	HeaderImplicit HeaderMode = 0x01
)

// SpreadingFactor occupies bits 7-4 of RegModemConfig2. The names give the
// chips per symbol.
type SpreadingFactor byte

const (
	Sf64   SpreadingFactor = 0x60
	Sf128  SpreadingFactor = 0x70
	Sf256  SpreadingFactor = 0x80
	Sf512  SpreadingFactor = 0x90
	Sf1024 SpreadingFactor = 0xa0
	Sf2048 SpreadingFactor = 0xb0
	Sf4096 SpreadingFactor = 0xc0
)

// Remaining RegModemConfig2 and RegModemConfig3 bits.
const (
	TxContinuousOn  = 0x08
	TxContinuousOff = 0x00
	RxPayloadCrcOn  = 0x04
	RxPayloadCrcOff = 0x00
	SymbTimeoutMsb  = 0x03

	AgcAutoOn  = 0x04
	AgcAutoOff = 0x00
)

// Bus framing.
const (
	spiWriteMask = 0x80
	spiAddrMask  = 0x7f
)

const (
	// MaxMessageLen is the largest payload the FIFO accepts for one packet.
	MaxMessageLen = 255

	// FXOSC is the crystal frequency, FStep the synthesizer resolution.
	FXOSC = 32000000.0
	FStep = FXOSC / 524288.0

	// rssiOffset converts RegPktRssiValue to dBm at HF.
	rssiOffset = 137

	minTxPower = 5
	maxTxPower = 23
	paDacLimit = 20
)
