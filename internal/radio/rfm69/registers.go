package rfm69

// Register map, HopeRF RFM69HCW datasheet section 6.
const (
	regFifo          = 0x00
	regOpMode        = 0x01
	regDataModul     = 0x02
	regBitrateMsb    = 0x03
	regBitrateLsb    = 0x04
	regFdevMsb       = 0x05
	regFdevLsb       = 0x06
	regFrfMsb        = 0x07
	regFrfMid        = 0x08
	regFrfLsb        = 0x09
	regVersion       = 0x10
	regRxBw          = 0x19
	regAfcBw         = 0x1a
	regRssiValue     = 0x24
	regDioMapping1   = 0x25
	regIrqFlags2     = 0x28
	regPreambleMsb   = 0x2c
	regPreambleLsb   = 0x2d
	regSyncConfig    = 0x2e
	regSyncValue1    = 0x2f
	regPacketConfig1 = 0x37
	regPayloadLength = 0x38
	regFifoThresh    = 0x3c
	regPacketConfig2 = 0x3d
	regAesKey1       = 0x3e
	regTemp1         = 0x4e
	regTemp2         = 0x4f
	regTestPa1       = 0x5a
	regTestPa2       = 0x5c
	regTestDagc      = 0x6f
)

const (
	modeSleep   = 0x00
	modeStandby = 0x01
	modeRx      = 0x04

	chipVersion = 0x24

	irq2PayloadReady = 0x04
	temp1Start       = 0x08
	temp1Running     = 0x04
	packetConfig2Aes = 0x01

	// variable length, whitening, CRC on, no address filtering
	packetConfig1Default = 0xd0
	// sync on, two sync bytes
	syncConfigDefault = 0x88
	// packet mode, FSK, gaussian BT 1.0
	dataModulDefault = 0x01
	// DCC 4%, 500 kHz
	rxBwDefault = 0xe0
	// PayloadReady on DIO0
	dioMappingRx = 0x40

	// fifo holds the 4 byte RadioHead header plus the frame
	maxPayload = 66

	headerSize       = 4
	broadcastAddress = 0xff

	fxosc = 32_000_000.0
	fstep = fxosc / (1 << 19)

	defaultBitrate            = 250_000
	defaultFrequencyDeviation = 250_000
	defaultPreamble           = 4
)

var syncWord = []byte{0x2d, 0xd4}
