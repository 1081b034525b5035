// Package rf95 drives a HopeRF RFM95/96/98 (Semtech SX127x) LoRa module over
// SPI.
//
// The driver polls the IRQ flag register instead of using the DIO0
// interrupt line. The operating mode is tracked in software: every write to
// RegOpMode goes through one of the SetMode* methods, so Mode always
// reflects the last mode requested from the chip.
//
// Methods are not safe for concurrent use. A Radio is meant to be owned by
// a single control loop.
package rf95

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Mode is the driver's view of the radio operating mode.
type Mode int

const (
	ModeInitializing Mode = iota
	ModeSleep
	ModeIdle
	ModeTx
	ModeRx
	ModeCAD
)

func (m Mode) String() string {
	switch m {
	case ModeInitializing:
		return "initializing"
	case ModeSleep:
		return "sleep"
	case ModeIdle:
		return "idle"
	case ModeTx:
		return "tx"
	case ModeRx:
		return "rx"
	case ModeCAD:
		return "cad"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

const (
	DefaultPollInterval = 10 * time.Millisecond
	DefaultTxTimeout    = 30 * time.Second

	modeSettleTime  = 10 * time.Millisecond
	defaultPreamble = 8
)

// Stats counts packets since construction.
type Stats struct {
	RxGood uint
	RxBad  uint
	TxGood uint
}

type Radio struct {
	regs *Registers
	mode Mode

	buf        [MaxMessageLen]byte
	bufLen     int
	rxBufValid bool
	lastRSSI   int
	cad        bool
	stats      Stats
	txTimedOut bool

	pollInterval time.Duration
	txTimeout    time.Duration
	sleep        func(time.Duration)
	now          func() time.Time
	logger       zerolog.Logger
}

type Option func(r *Radio)

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Radio) {
		r.logger = logger
	}
}

// WithPollInterval sets the TX done polling period.
func WithPollInterval(d time.Duration) Option {
	return func(r *Radio) {
		r.pollInterval = d
	}
}

// WithTxTimeout bounds WaitPacketSent. Zero waits forever.
func WithTxTimeout(d time.Duration) Option {
	return func(r *Radio) {
		r.txTimeout = d
	}
}

// WithClock replaces time.Sleep and time.Now, for tests.
func WithClock(sleep func(time.Duration), now func() time.Time) Option {
	return func(r *Radio) {
		r.sleep = sleep
		r.now = now
	}
}

func New(conn Conn, opts ...Option) *Radio {
	r := &Radio{
		regs:         NewRegisters(conn),
		mode:         ModeInitializing,
		lastRSSI:     -99,
		pollInterval: DefaultPollInterval,
		txTimeout:    DefaultTxTimeout,
		sleep:        time.Sleep,
		now:          time.Now,
		logger:       log.Logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With().Str("component", "rf95").Logger()
	return r
}

// Init puts the chip in LoRa sleep mode, checks that it took the setting,
// and applies the default modem configuration. ErrNotConfigured means no
// radio answered on the bus.
func (r *Radio) Init() error {
	if err := r.regs.WriteRegister(RegOpMode, OpSleep|LongRangeMode); err != nil {
		return err
	}
	r.mode = ModeSleep
	r.sleep(modeSettleTime)

	v, err := r.regs.ReadRegister(RegOpMode)
	if err != nil {
		return err
	}
	if v != OpSleep|LongRangeMode {
		r.logger.Error().Uint8("op_mode", v).Msg("unexpected op mode after reset")
		return ErrNotConfigured
	}

	if err := r.regs.WriteRegister(RegFifoTxBaseAddr, 0); err != nil {
		return err
	}
	if err := r.regs.WriteRegister(RegFifoRxBaseAddr, 0); err != nil {
		return err
	}
	if err := r.SetModeIdle(); err != nil {
		return err
	}
	if err := r.SetModemConfig(ProfileMediumRange); err != nil {
		return err
	}
	if err := r.SetPreambleLength(defaultPreamble); err != nil {
		return err
	}

	r.logger.Debug().Msg("radio initialized")
	return nil
}

func (r *Radio) Mode() Mode {
	return r.mode
}

func (r *Radio) Version() (byte, error) {
	return r.regs.ReadRegister(RegVersion)
}

// SetFrequency programs the carrier frequency in MHz.
func (r *Radio) SetFrequency(mhz float64) error {
	frf := uint32((mhz * 1000000.0) / FStep)
	if err := r.regs.WriteRegister(RegFrfMsb, byte(frf>>16)); err != nil {
		return err
	}
	if err := r.regs.WriteRegister(RegFrfMid, byte(frf>>8)); err != nil {
		return err
	}
	return r.regs.WriteRegister(RegFrfLsb, byte(frf))
}

// Frequency reads back the programmed carrier frequency in MHz.
func (r *Radio) Frequency() (float64, error) {
	b, err := r.regs.ReadBurst(RegFrfMsb, 3)
	if err != nil {
		return 0, err
	}
	frf := uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
	return float64(frf) * FStep / 1000000.0, nil
}

// SetTxPower sets the PA_BOOST output power in dBm, clamped to [5, 23].
// Above 20dBm the high power DAC is enabled, which adds about 3dBm, so the
// programmed level is reduced to match.
func (r *Radio) SetTxPower(dbm int) error {
	power := dbm
	if power > maxTxPower {
		power = maxTxPower
	}
	if power < minTxPower {
		power = minTxPower
	}

	if power > paDacLimit {
		if err := r.regs.WriteRegister(RegPaDac, PaDacEnable); err != nil {
			return err
		}
		power -= 3
	} else {
		if err := r.regs.WriteRegister(RegPaDac, PaDacDisable); err != nil {
			return err
		}
	}

	return r.regs.WriteRegister(RegPaConfig, PaSelect|byte(power-minTxPower))
}

func (r *Radio) SetModemConfig(p ModemProfile) error {
	if err := r.regs.WriteRegister(RegModemConfig1, p.Config1); err != nil {
		return err
	}
	if err := r.regs.WriteRegister(RegModemConfig2, p.Config2); err != nil {
		return err
	}
	return r.regs.WriteRegister(RegModemConfig3, p.Config3)
}

// SetModemConfigCustom writes raw bitfields. The caller is responsible for
// passing values that match the register layout.
func (r *Radio) SetModemConfigCustom(bandwidth, codingRate, implicitHeader, spreadingFactor, crc, continuousTx, timeout, agcAuto byte) error {
	return r.SetModemConfig(ModemProfile{
		Config1: bandwidth | codingRate | implicitHeader,
		Config2: spreadingFactor | continuousTx | crc | timeout,
		Config3: agcAuto,
	})
}

func (r *Radio) SetPreambleLength(n uint16) error {
	if err := r.regs.WriteRegister(RegPreambleMsb, byte(n>>8)); err != nil {
		return err
	}
	return r.regs.WriteRegister(RegPreambleLsb, byte(n))
}

func (r *Radio) SetModeIdle() error {
	if r.mode == ModeIdle {
		return nil
	}
	if err := r.regs.WriteRegister(RegOpMode, OpStandby); err != nil {
		return err
	}
	r.mode = ModeIdle
	return nil
}

func (r *Radio) SetModeSleep() error {
	if r.mode == ModeSleep {
		return nil
	}
	if err := r.regs.WriteRegister(RegOpMode, OpSleep); err != nil {
		return err
	}
	r.mode = ModeSleep
	return nil
}

func (r *Radio) SetModeRx() error {
	if r.mode == ModeRx {
		return nil
	}
	if err := r.regs.WriteRegister(RegOpMode, OpRxContinuous); err != nil {
		return err
	}
	if err := r.regs.WriteRegister(RegDioMapping1, DioRxDone); err != nil {
		return err
	}
	r.mode = ModeRx
	return nil
}

func (r *Radio) SetModeTx() error {
	if r.mode == ModeTx {
		return nil
	}
	if err := r.regs.WriteRegister(RegOpMode, OpTx); err != nil {
		return err
	}
	if err := r.regs.WriteRegister(RegDioMapping1, DioTxDone); err != nil {
		return err
	}
	r.mode = ModeTx
	return nil
}

// SetModeCAD starts channel activity detection. Available reports the
// result once the chip raises CadDone.
func (r *Radio) SetModeCAD() error {
	if r.mode == ModeCAD {
		return nil
	}
	if err := r.regs.WriteRegister(RegOpMode, OpCAD); err != nil {
		return err
	}
	if err := r.regs.WriteRegister(RegDioMapping1, DioCadDone); err != nil {
		return err
	}
	r.mode = ModeCAD
	return nil
}

// Send loads data into the FIFO and starts transmitting. It first waits for
// any packet still in flight. Oversized payloads are rejected before any
// register is touched. A transmission that already timed out is abandoned
// rather than waited on again.
func (r *Radio) Send(data []byte) error {
	if len(data) > MaxMessageLen {
		return ErrPayloadTooLarge
	}

	if r.txTimedOut && r.mode == ModeTx {
		r.logger.Warn().Msg("abandoning timed out transmission")
		if err := r.SetModeIdle(); err != nil {
			return err
		}
		if err := r.regs.WriteRegister(RegIrqFlags, irqClearAll); err != nil {
			return err
		}
	}
	r.txTimedOut = false

	if _, err := r.WaitPacketSent(); err != nil {
		return err
	}
	if err := r.SetModeIdle(); err != nil {
		return err
	}

	if err := r.regs.WriteRegister(RegFifoAddrPtr, 0); err != nil {
		return err
	}
	if err := r.regs.WriteBurst(RegFifo, data); err != nil {
		return err
	}
	if err := r.regs.WriteRegister(RegPayloadLength, byte(len(data))); err != nil {
		return err
	}

	return r.SetModeTx()
}

// WaitPacketSent blocks until the packet being transmitted is out, then
// returns to idle. It reports false when there was nothing in flight.
// ErrTxTimeout is returned when TxDone is not raised within the configured
// timeout; the radio is left in tx mode until the next Send.
func (r *Radio) WaitPacketSent() (bool, error) {
	if r.mode != ModeTx {
		return false, nil
	}

	start := r.now()
	for {
		flags, err := r.regs.ReadRegister(RegIrqFlags)
		if err != nil {
			return false, err
		}
		if flags&IrqTxDone != 0 {
			break
		}
		if r.txTimeout > 0 && r.now().Sub(start) >= r.txTimeout {
			r.logger.Warn().Dur("timeout", r.txTimeout).Msg("tx done never raised")
			r.txTimedOut = true
			return false, ErrTxTimeout
		}
		r.sleep(r.pollInterval)
	}

	r.stats.TxGood++
	if err := r.regs.WriteRegister(RegIrqFlags, irqClearAll); err != nil {
		return false, err
	}
	if err := r.SetModeIdle(); err != nil {
		return false, err
	}
	return true, nil
}

// Available services pending radio events and reports whether a valid
// received packet is waiting in the buffer. Unless transmitting, the radio
// is left listening in continuous receive mode.
func (r *Radio) Available() (bool, error) {
	// TxDone belongs to WaitPacketSent.
	if r.mode == ModeTx {
		return false, ErrRadioBusy
	}

	flags, err := r.regs.ReadRegister(RegIrqFlags)
	if err != nil {
		return false, err
	}

	handled := false
	switch {
	case r.mode == ModeRx && flags&IrqRxDone != 0:
		handled = true
		if flags&IrqPayloadCrcError != 0 {
			r.stats.RxBad++
			r.logger.Debug().Msg("dropped packet with crc error")
			break
		}
		if err := r.readPacket(); err != nil {
			return false, err
		}
	case r.mode == ModeCAD && flags&IrqCadDone != 0:
		handled = true
		r.cad = flags&IrqCadDetected != 0
		if err := r.SetModeIdle(); err != nil {
			return false, err
		}
	}

	if err := r.regs.WriteRegister(RegIrqFlags, irqClearAll); err != nil {
		return false, err
	}

	// A detection still in progress is left running.
	if !handled && r.mode != ModeCAD {
		if err := r.SetModeRx(); err != nil {
			return false, err
		}
	}
	return r.rxBufValid, nil
}

func (r *Radio) readPacket() error {
	n, err := r.regs.ReadRegister(RegRxNbBytes)
	if err != nil {
		return err
	}
	ptr, err := r.regs.ReadRegister(RegFifoRxCurrentAddr)
	if err != nil {
		return err
	}
	if err := r.regs.WriteRegister(RegFifoAddrPtr, ptr); err != nil {
		return err
	}
	data, err := r.regs.ReadBurst(RegFifo, int(n))
	if err != nil {
		return err
	}
	rssi, err := r.regs.ReadRegister(RegPktRssiValue)
	if err != nil {
		return err
	}

	r.bufLen = copy(r.buf[:], data)
	r.lastRSSI = int(rssi) - rssiOffset
	r.rxBufValid = true
	r.stats.RxGood++
	return r.SetModeIdle()
}

// Recv returns a copy of the received packet and clears the buffer.
func (r *Radio) Recv() ([]byte, bool) {
	if !r.rxBufValid {
		return nil, false
	}
	out := make([]byte, r.bufLen)
	copy(out, r.buf[:r.bufLen])
	r.ClearRxBuf()
	return out, true
}

func (r *Radio) ClearRxBuf() {
	r.rxBufValid = false
	r.bufLen = 0
}

// LastRSSI is the signal strength of the last good packet in dBm.
func (r *Radio) LastRSSI() int {
	return r.lastRSSI
}

// CADDetected reports whether the last channel activity detection saw a
// LoRa preamble.
func (r *Radio) CADDetected() bool {
	return r.cad
}

func (r *Radio) Stats() Stats {
	return r.stats
}
