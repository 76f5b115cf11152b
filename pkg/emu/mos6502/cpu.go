// Package mos6502 implements an NMOS 6502 core used by the SID and NSF
// backends. Instruction timing is per instruction, not per cycle, which is
// all the music players need.
package mos6502

import (
	"fmt"
)

// Bus is the memory interface the CPU reads and writes through.
type Bus interface {
	Read(addr uint16) uint8
	Write(addr uint16, value uint8)
}

// Status register flags
const (
	FlagC uint8 = 1 << iota
	FlagZ
	FlagI
	FlagD
	FlagB
	FlagU
	FlagV
	FlagN
)

// Interrupt vectors
const (
	VectorNMI   uint16 = 0xFFFA
	VectorReset uint16 = 0xFFFC
	VectorIRQ   uint16 = 0xFFFE
)

// JamError is returned by Step when the CPU hits an opcode that halts a
// real 6502 or that this core does not implement.
type JamError struct {
	Opcode uint8
	PC     uint16
}

func (e *JamError) Error() string {
	return fmt.Sprintf("cpu jammed: opcode $%02X at $%04X", e.Opcode, e.PC)
}

// CPU holds the register file and interrupt lines.
type CPU struct {
	A, X, Y uint8
	SP      uint8
	P       uint8
	PC      uint16

	// Cycles counts executed cycles since construction
	Cycles uint64

	bus        Bus
	irqLine    bool
	nmiPending bool
	extra      int // branch and page-cross penalties of the current instruction
}

// New creates a CPU attached to bus. Call Reset or set PC before stepping.
func New(bus Bus) *CPU {
	return &CPU{
		bus: bus,
		SP:  0xFD,
		P:   FlagU | FlagI,
	}
}

// Reset loads PC from the reset vector and restores power-on flags.
func (c *CPU) Reset() {
	c.A, c.X, c.Y = 0, 0, 0
	c.SP = 0xFD
	c.P = FlagU | FlagI
	c.irqLine = false
	c.nmiPending = false
	c.PC = c.read16(VectorReset)
}

// SetIRQ drives the level-triggered IRQ line.
func (c *CPU) SetIRQ(active bool) {
	c.irqLine = active
}

// TriggerNMI latches an edge on the NMI line.
func (c *CPU) TriggerNMI() {
	c.nmiPending = true
}

// Step services a pending interrupt or executes one instruction and returns
// the cycles consumed.
func (c *CPU) Step() (int, error) {
	if c.nmiPending {
		c.nmiPending = false
		c.interrupt(VectorNMI, false)
		c.Cycles += 7
		return 7, nil
	}
	if c.irqLine && c.P&FlagI == 0 {
		c.interrupt(VectorIRQ, false)
		c.Cycles += 7
		return 7, nil
	}

	pc := c.PC
	opcode := c.bus.Read(pc)
	o := &opcodes[opcode]
	if o.exec == nil {
		return 0, &JamError{Opcode: opcode, PC: pc}
	}
	c.PC++

	c.extra = 0
	addr, crossed := c.operand(o.mode)
	if crossed && o.pageCycle {
		c.extra++
	}
	o.exec(c, addr)

	cycles := int(o.cycles) + c.extra
	c.Cycles += uint64(cycles)
	return cycles, nil
}

func (c *CPU) interrupt(vector uint16, brk bool) {
	c.push16(c.PC)
	p := c.P | FlagU
	if brk {
		p |= FlagB
	} else {
		p &^= FlagB
	}
	c.push(p)
	c.P |= FlagI
	c.PC = c.read16(vector)
}

func (c *CPU) read16(addr uint16) uint16 {
	return uint16(c.bus.Read(addr)) | uint16(c.bus.Read(addr+1))<<8
}

// read16zp reads a pointer from the zero page, wrapping inside it.
func (c *CPU) read16zp(ptr uint8) uint16 {
	return uint16(c.bus.Read(uint16(ptr))) | uint16(c.bus.Read(uint16(ptr+1)))<<8
}

func (c *CPU) push(v uint8) {
	c.bus.Write(0x0100|uint16(c.SP), v)
	c.SP--
}

func (c *CPU) pull() uint8 {
	c.SP++
	return c.bus.Read(0x0100 | uint16(c.SP))
}

func (c *CPU) push16(v uint16) {
	c.push(uint8(v >> 8))
	c.push(uint8(v))
}

func (c *CPU) pull16() uint16 {
	lo := uint16(c.pull())
	hi := uint16(c.pull())
	return hi<<8 | lo
}

func (c *CPU) setFlag(flag uint8, on bool) {
	if on {
		c.P |= flag
	} else {
		c.P &^= flag
	}
}

func (c *CPU) setZN(v uint8) {
	c.setFlag(FlagZ, v == 0)
	c.setFlag(FlagN, v&0x80 != 0)
}

func pageCrossed(a, b uint16) bool {
	return a&0xFF00 != b&0xFF00
}

// operand resolves the effective address for mode and advances PC past the
// operand bytes.
func (c *CPU) operand(m mode) (uint16, bool) {
	switch m {
	case modeImplied, modeAccumulator:
		return 0, false
	case modeImmediate:
		addr := c.PC
		c.PC++
		return addr, false
	case modeZeroPage:
		addr := uint16(c.bus.Read(c.PC))
		c.PC++
		return addr, false
	case modeZeroPageX:
		addr := uint16(c.bus.Read(c.PC) + c.X)
		c.PC++
		return addr, false
	case modeZeroPageY:
		addr := uint16(c.bus.Read(c.PC) + c.Y)
		c.PC++
		return addr, false
	case modeAbsolute:
		addr := c.read16(c.PC)
		c.PC += 2
		return addr, false
	case modeAbsoluteX:
		base := c.read16(c.PC)
		c.PC += 2
		addr := base + uint16(c.X)
		return addr, pageCrossed(base, addr)
	case modeAbsoluteY:
		base := c.read16(c.PC)
		c.PC += 2
		addr := base + uint16(c.Y)
		return addr, pageCrossed(base, addr)
	case modeIndirect:
		ptr := c.read16(c.PC)
		c.PC += 2
		// the high byte is fetched without carrying into the page
		hiAddr := ptr&0xFF00 | uint16(uint8(ptr)+1)
		return uint16(c.bus.Read(ptr)) | uint16(c.bus.Read(hiAddr))<<8, false
	case modeIndexedIndirect:
		ptr := c.bus.Read(c.PC) + c.X
		c.PC++
		return c.read16zp(ptr), false
	case modeIndirectIndexed:
		ptr := c.bus.Read(c.PC)
		c.PC++
		base := c.read16zp(ptr)
		addr := base + uint16(c.Y)
		return addr, pageCrossed(base, addr)
	case modeRelative:
		offset := int8(c.bus.Read(c.PC))
		c.PC++
		return c.PC + uint16(offset), false
	}
	return 0, false
}

func (c *CPU) branch(cond bool, target uint16) {
	if !cond {
		return
	}
	c.extra++
	if pageCrossed(c.PC, target) {
		c.extra++
	}
	c.PC = target
}

func (c *CPU) adc(v uint8) {
	carry := uint16(c.P & FlagC)
	a := uint16(c.A)
	if c.P&FlagD != 0 {
		lo := a&0x0F + uint16(v&0x0F) + carry
		hi := a&0xF0 + uint16(v&0xF0)
		if lo > 0x09 {
			lo += 0x06
			hi += 0x10
		}
		c.setFlag(FlagZ, uint8(a+uint16(v)+carry) == 0)
		c.setFlag(FlagN, hi&0x80 != 0)
		c.setFlag(FlagV, ^(a^uint16(v))&(a^hi)&0x80 != 0)
		if hi > 0x90 {
			hi += 0x60
		}
		c.setFlag(FlagC, hi > 0xFF)
		c.A = uint8(lo&0x0F | hi&0xF0)
		return
	}
	sum := a + uint16(v) + carry
	c.setFlag(FlagC, sum > 0xFF)
	c.setFlag(FlagV, ^(c.A^v)&(c.A^uint8(sum))&0x80 != 0)
	c.A = uint8(sum)
	c.setZN(c.A)
}

func (c *CPU) sbc(v uint8) {
	borrow := uint16(1 - c.P&FlagC)
	diff := uint16(c.A) - uint16(v) - borrow
	c.setFlag(FlagC, diff < 0x100)
	c.setFlag(FlagV, (c.A^v)&(c.A^uint8(diff))&0x80 != 0)
	c.setZN(uint8(diff))
	if c.P&FlagD != 0 {
		lo := int(c.A&0x0F) - int(v&0x0F) - int(borrow)
		hi := int(c.A>>4) - int(v>>4)
		if lo < 0 {
			lo += 10
			hi--
		}
		if hi < 0 {
			hi += 10
		}
		c.A = uint8(hi<<4) | uint8(lo&0x0F)
		return
	}
	c.A = uint8(diff)
}

func (c *CPU) compare(reg, v uint8) {
	c.setFlag(FlagC, reg >= v)
	c.setZN(reg - v)
}

func (c *CPU) asl(v uint8) uint8 {
	c.setFlag(FlagC, v&0x80 != 0)
	v <<= 1
	c.setZN(v)
	return v
}

func (c *CPU) lsr(v uint8) uint8 {
	c.setFlag(FlagC, v&0x01 != 0)
	v >>= 1
	c.setZN(v)
	return v
}

func (c *CPU) rol(v uint8) uint8 {
	carry := c.P & FlagC
	c.setFlag(FlagC, v&0x80 != 0)
	v = v<<1 | carry
	c.setZN(v)
	return v
}

func (c *CPU) ror(v uint8) uint8 {
	carry := c.P & FlagC
	c.setFlag(FlagC, v&0x01 != 0)
	v = v>>1 | carry<<7
	c.setZN(v)
	return v
}

// modify runs a read-modify-write cycle on addr.
func (c *CPU) modify(addr uint16, fn func(uint8) uint8) uint8 {
	v := fn(c.bus.Read(addr))
	c.bus.Write(addr, v)
	return v
}
