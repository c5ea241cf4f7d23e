// Package ata implements the primary-channel ATA PIO driver of spec.md
// §4.7: IDENTIFY, LBA28 sector read/write, and the wait_ready/wait_drq
// spin-budget polling loops, all driven through the same port-register
// protocol a real ATA channel exposes. Grounded in the teacher's general
// pattern of modelling a register-level device behind the port bus (as
// seen across internal/devices/amd64/chipset) rather than any single
// file, since the teacher pack has no IDE/ATA controller of its own.
package ata

import (
	"errors"
	"sync"

	"github.com/y4ku-os/kernel/internal/ioport"
)

const (
	dataPort        uint16 = 0x1F0
	featurePort     uint16 = 0x1F1
	sectorCountPort uint16 = 0x1F2
	lbaLowPort      uint16 = 0x1F3
	lbaMidPort      uint16 = 0x1F4
	lbaHighPort     uint16 = 0x1F5
	deviceHeadPort  uint16 = 0x1F6
	statusPort      uint16 = 0x1F7
	commandPort     uint16 = 0x1F7
	altStatusPort   uint16 = 0x3F6

	statusErr  = 1 << 0
	statusDRQ  = 1 << 3
	statusBusy = 1 << 7

	cmdIdentify   = 0xEC
	cmdReadPIO    = 0x20
	cmdWritePIO   = 0x30
	cmdFlushCache = 0xE7

	selectSlaveBit      = 1 << 4
	lbaModeBit          = 1 << 6
	deviceHeadFixedBits = 0xA0 // bits 5 and 7 are always set on a real device/head register

	spinBudget = 1_000_000

	sectorWords = 256
	sectorBytes = sectorWords * 2
)

// ErrNoDevice is returned when IDENTIFY finds nothing attached at the
// given slot (status reads 0).
var ErrNoDevice = errors.New("ata: no device present")

// ErrTimeout is returned when wait_ready or wait_drq exhausts its spin
// budget.
var ErrTimeout = errors.New("ata: spin-wait budget exhausted")

// DeviceRecord is the decoded IDENTIFY result of spec.md §3.
type DeviceRecord struct {
	Model           string
	Cylinders       uint16
	Heads           uint16
	SectorsPerTrack uint16
	LBA28Sectors    uint32
	LBA48Capable    bool
	LBA48Sectors    uint64
	Signature       uint16
}

// disk is the in-memory backing store for one attached device; present
// being false models an empty slot (IDENTIFY returns ErrNoDevice).
type disk struct {
	present bool
	record  DeviceRecord
	sectors [][sectorBytes]byte
}

// transferKind tracks what the channel's current PIO transfer is doing,
// so the data port and status register behave like the real protocol:
// DRQ only reads high while a transfer has a sector ready.
type transferKind int

const (
	transferNone transferKind = iota
	transferRead
	transferWrite
	transferIdentify
)

// Channel is the primary ATA channel: master and slave device slots,
// pure PIO, no interrupts, per spec.md §4.7. It implements
// ioport.PortDevice directly: ReadSectors/WriteSectors/Identify drive the
// same registers a guest driver would, rather than reaching into the
// backing disk image directly.
type Channel struct {
	mu      sync.Mutex
	devices [2]disk

	selected int
	lba      uint32
	count    byte

	kind      transferKind
	sector    []byte
	pos       int
	remaining int

	busy bool
	drq  bool
	err  bool
}

// NewChannel returns a channel with both slots empty, registered on bus
// at the primary ATA port range. Attach populates a slot with a
// simulated disk image.
func NewChannel(bus *ioport.Bus) *Channel {
	c := &Channel{}
	if bus != nil {
		_ = bus.Register(c)
	}
	return c
}

// Ports implements ioport.PortDevice.
func (c *Channel) Ports() []uint16 {
	return []uint16{
		dataPort, featurePort, sectorCountPort,
		lbaLowPort, lbaMidPort, lbaHighPort,
		deviceHeadPort, statusPort, altStatusPort,
	}
}

// ReadPort implements ioport.PortDevice.
func (c *Channel) ReadPort(port uint16, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch port {
	case dataPort:
		c.readDataLocked(data)
	case statusPort, altStatusPort:
		data[0] = c.statusByteLocked()
	case sectorCountPort:
		data[0] = c.count
	case lbaLowPort:
		data[0] = byte(c.lba)
	case lbaMidPort:
		data[0] = byte(c.lba >> 8)
	case lbaHighPort:
		data[0] = byte(c.lba >> 16)
	case deviceHeadPort:
		v := byte(deviceHeadFixedBits) | lbaModeBit | byte((c.lba>>24)&0x0F)
		if c.selected == 1 {
			v |= selectSlaveBit
		}
		data[0] = v
	default:
		for i := range data {
			data[i] = 0
		}
	}
	return nil
}

// WritePort implements ioport.PortDevice.
func (c *Channel) WritePort(port uint16, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch port {
	case sectorCountPort:
		c.count = data[0]
	case lbaLowPort:
		c.lba = (c.lba &^ 0xFF) | uint32(data[0])
	case lbaMidPort:
		c.lba = (c.lba &^ 0xFF00) | uint32(data[0])<<8
	case lbaHighPort:
		c.lba = (c.lba &^ 0xFF0000) | uint32(data[0])<<16
	case deviceHeadPort:
		if data[0]&selectSlaveBit != 0 {
			c.selected = 1
		} else {
			c.selected = 0
		}
		c.lba = (c.lba &^ 0x0F000000) | uint32(data[0]&0x0F)<<24
	case commandPort:
		c.beginCommandLocked(data[0])
	case dataPort:
		c.writeDataLocked(data)
	}
	return nil
}

// statusByteLocked reports the live BSY/DRQ/ERR bits of the currently
// selected device, replacing a hardcoded status with the state the
// in-flight transfer (if any) actually left behind.
func (c *Channel) statusByteLocked() byte {
	if !c.devices[c.selected].present {
		return 0
	}
	var s byte
	if c.busy {
		s |= statusBusy
	}
	if c.drq {
		s |= statusDRQ
	}
	if c.err {
		s |= statusErr
	}
	return s
}

func (c *Channel) beginCommandLocked(cmd byte) {
	c.err = false
	c.drq = false
	c.busy = false
	c.kind = transferNone

	d := &c.devices[c.selected]
	if !d.present {
		c.err = true
		return
	}

	switch cmd {
	case cmdIdentify:
		c.kind = transferIdentify
		c.sector = encodeIdentifySector(d.record)
		c.pos = 0
		c.drq = true

	case cmdReadPIO:
		count := sectorsForCount(c.count)
		if int(c.lba)+count > len(d.sectors) {
			c.err = true
			return
		}
		c.kind = transferRead
		c.remaining = count
		sec := d.sectors[c.lba]
		c.sector = append([]byte(nil), sec[:]...)
		c.pos = 0
		c.drq = true

	case cmdWritePIO:
		count := sectorsForCount(c.count)
		if int(c.lba)+count > len(d.sectors) {
			c.err = true
			return
		}
		c.kind = transferWrite
		c.remaining = count
		c.sector = make([]byte, sectorBytes)
		c.pos = 0
		c.drq = true

	case cmdFlushCache:
		// no-op: writes already land directly in the backing sectors.

	default:
		c.err = true
	}
}

// sectorsForCount decodes the PIO sector-count register: 0 means 256
// sectors, per the ATA convention.
func sectorsForCount(count byte) int {
	if count == 0 {
		return 256
	}
	return int(count)
}

func (c *Channel) readDataLocked(data []byte) {
	for i := range data {
		if c.pos < len(c.sector) {
			data[i] = c.sector[c.pos]
			c.pos++
		} else {
			data[i] = 0xff
		}
	}
	if c.pos >= len(c.sector) {
		c.advanceReadLocked()
	}
}

func (c *Channel) advanceReadLocked() {
	switch c.kind {
	case transferIdentify:
		c.kind = transferNone
		c.drq = false
	case transferRead:
		c.remaining--
		c.lba++
		if c.remaining > 0 {
			d := &c.devices[c.selected]
			sec := d.sectors[c.lba]
			c.sector = append([]byte(nil), sec[:]...)
			c.pos = 0
			c.drq = true
		} else {
			c.kind = transferNone
			c.drq = false
		}
	}
}

func (c *Channel) writeDataLocked(data []byte) {
	if c.kind != transferWrite {
		return
	}
	for _, b := range data {
		if c.pos < len(c.sector) {
			c.sector[c.pos] = b
			c.pos++
		}
	}
	if c.pos >= len(c.sector) {
		d := &c.devices[c.selected]
		copy(d.sectors[c.lba][:], c.sector)
		c.remaining--
		c.lba++
		if c.remaining > 0 {
			c.sector = make([]byte, sectorBytes)
			c.pos = 0
		} else {
			c.kind = transferNone
			c.drq = false
		}
	}
}

// Attach installs a backing disk image at slot (0=master, 1=slave) with
// the given geometry and capacity.
func (c *Channel) Attach(slot int, model string, cylinders, heads, sectorsPerTrack uint16, lba28Sectors uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.devices[slot] = disk{
		present: true,
		record: DeviceRecord{
			Model:           model,
			Cylinders:       cylinders,
			Heads:           heads,
			SectorsPerTrack: sectorsPerTrack,
			LBA28Sectors:    lba28Sectors,
			Signature:       0xEB14,
		},
		sectors: make([][sectorBytes]byte, lba28Sectors),
	}
}

func spinWait(predicate func() bool) error {
	for i := 0; i < spinBudget; i++ {
		if predicate() {
			return nil
		}
	}
	return ErrTimeout
}

func (c *Channel) outb(port uint16, val byte) {
	_ = c.WritePort(port, []byte{val})
}

func (c *Channel) outw(port uint16, val uint16) {
	_ = c.WritePort(port, []byte{byte(val), byte(val >> 8)})
}

func (c *Channel) inb(port uint16) byte {
	var v [1]byte
	_ = c.ReadPort(port, v[:])
	return v[0]
}

func (c *Channel) inw(port uint16) uint16 {
	var v [2]byte
	_ = c.ReadPort(port, v[:])
	return uint16(v[0]) | uint16(v[1])<<8
}

func (c *Channel) selectSlot(slot int) {
	head := byte(deviceHeadFixedBits) | lbaModeBit
	if slot == 1 {
		head |= selectSlaveBit
	}
	c.outb(deviceHeadPort, head)
}

// waitReady polls until the device is no longer busy, honouring the
// 1,000,000-spin budget of spec.md §4.7.
func (c *Channel) waitReady(slot int) error {
	c.selectSlot(slot)
	return spinWait(func() bool {
		return c.inb(statusPort)&statusBusy == 0
	})
}

// waitDRQ polls until DRQ is set or an error bit appears (fast-exit).
func (c *Channel) waitDRQ(slot int) error {
	c.selectSlot(slot)
	var fault bool
	err := spinWait(func() bool {
		s := c.inb(statusPort)
		if s&statusErr != 0 {
			fault = true
			return true
		}
		return s&statusDRQ != 0
	})
	if err != nil {
		return err
	}
	if fault {
		return errors.New("ata: device reported error status")
	}
	return nil
}

func (c *Channel) devicePresent(slot int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.devices[slot].present
}

// Identify issues the IDENTIFY command for slot, drains its 256-word
// response through the data port, and decodes it back into a
// DeviceRecord, per spec.md §4.7: bail out with ErrNoDevice if nothing
// is attached.
func (c *Channel) Identify(slot int) (DeviceRecord, error) {
	if !c.devicePresent(slot) {
		return DeviceRecord{}, ErrNoDevice
	}

	c.selectSlot(slot)
	c.outb(commandPort, cmdIdentify)
	if err := c.waitDRQ(slot); err != nil {
		return DeviceRecord{}, err
	}

	buf := make([]byte, sectorBytes)
	for i := 0; i < sectorWords; i++ {
		w := c.inw(dataPort)
		buf[i*2] = byte(w)
		buf[i*2+1] = byte(w >> 8)
	}
	return decodeIdentifySector(buf), nil
}

// ReadSectors performs an LBA28 PIO read of count sectors starting at lba
// into dst (must be len(dst) >= count*512), per spec.md §4.7.
func (c *Channel) ReadSectors(slot int, lba uint32, count int, dst []byte) (bool, error) {
	if !c.devicePresent(slot) {
		return false, ErrNoDevice
	}
	c.mu.Lock()
	total := len(c.devices[slot].sectors)
	c.mu.Unlock()
	if int(lba)+count > total {
		return false, errors.New("ata: read past end of device")
	}
	if len(dst) < count*sectorBytes {
		return false, errors.New("ata: destination buffer too small")
	}

	if err := c.waitReady(slot); err != nil {
		return false, err
	}
	c.programRegisters(slot, lba, count)
	c.outb(commandPort, cmdReadPIO)

	for s := 0; s < count; s++ {
		if err := c.waitDRQ(slot); err != nil {
			return false, err
		}
		for i := 0; i < sectorWords; i++ {
			w := c.inw(dataPort)
			dst[s*sectorBytes+i*2] = byte(w)
			dst[s*sectorBytes+i*2+1] = byte(w >> 8)
		}
	}
	return true, nil
}

// WriteSectors performs an LBA28 PIO write of count sectors starting at
// lba from src, issuing FLUSH CACHE and waiting for BSY clear afterward,
// per spec.md §4.7.
func (c *Channel) WriteSectors(slot int, lba uint32, count int, src []byte) (bool, error) {
	if !c.devicePresent(slot) {
		return false, ErrNoDevice
	}
	c.mu.Lock()
	total := len(c.devices[slot].sectors)
	c.mu.Unlock()
	if int(lba)+count > total {
		return false, errors.New("ata: write past end of device")
	}
	if len(src) < count*sectorBytes {
		return false, errors.New("ata: source buffer too small")
	}

	if err := c.waitReady(slot); err != nil {
		return false, err
	}
	c.programRegisters(slot, lba, count)
	c.outb(commandPort, cmdWritePIO)

	for s := 0; s < count; s++ {
		if err := c.waitDRQ(slot); err != nil {
			return false, err
		}
		for i := 0; i < sectorWords; i++ {
			lo := src[s*sectorBytes+i*2]
			hi := src[s*sectorBytes+i*2+1]
			c.outw(dataPort, uint16(lo)|uint16(hi)<<8)
		}
	}

	c.outb(commandPort, cmdFlushCache)
	if err := c.waitReady(slot); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Channel) programRegisters(slot int, lba uint32, count int) {
	c.selectSlot(slot)
	c.outb(sectorCountPort, byte(count))
	c.outb(lbaLowPort, byte(lba))
	c.outb(lbaMidPort, byte(lba>>8))
	c.outb(lbaHighPort, byte(lba>>16))
	head := byte(deviceHeadFixedBits) | lbaModeBit | byte((lba>>24)&0x0F)
	if slot == 1 {
		head |= selectSlaveBit
	}
	c.outb(deviceHeadPort, head)
}
