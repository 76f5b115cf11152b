package mos6502

type mode uint8

const (
	modeImplied mode = iota
	modeAccumulator
	modeImmediate
	modeZeroPage
	modeZeroPageX
	modeZeroPageY
	modeAbsolute
	modeAbsoluteX
	modeAbsoluteY
	modeIndirect
	modeIndexedIndirect
	modeIndirectIndexed
	modeRelative
)

type opcode struct {
	name      string
	mode      mode
	cycles    uint8
	pageCycle bool
	exec      func(c *CPU, addr uint16)
}

var opcodes [256]opcode

func def(code uint8, name string, m mode, cycles uint8, pageCycle bool, exec func(*CPU, uint16)) {
	opcodes[code] = opcode{name: name, mode: m, cycles: cycles, pageCycle: pageCycle, exec: exec}
}

// group registers the eight standard addressing variants of an ALU
// instruction: imm, zp, zp,x, abs, abs,x, abs,y, (zp,x), (zp),y.
func group(name string, codes [8]uint8, exec func(*CPU, uint16)) {
	def(codes[0], name, modeImmediate, 2, false, exec)
	def(codes[1], name, modeZeroPage, 3, false, exec)
	def(codes[2], name, modeZeroPageX, 4, false, exec)
	def(codes[3], name, modeAbsolute, 4, false, exec)
	def(codes[4], name, modeAbsoluteX, 4, true, exec)
	def(codes[5], name, modeAbsoluteY, 4, true, exec)
	def(codes[6], name, modeIndexedIndirect, 6, false, exec)
	def(codes[7], name, modeIndirectIndexed, 5, true, exec)
}

// shift registers acc, zp, zp,x, abs, abs,x variants of a shift or rotate.
func shift(name string, codes [5]uint8, fn func(*CPU, uint8) uint8) {
	def(codes[0], name, modeAccumulator, 2, false, func(c *CPU, _ uint16) { c.A = fn(c, c.A) })
	mem := func(c *CPU, addr uint16) { c.modify(addr, func(v uint8) uint8 { return fn(c, v) }) }
	def(codes[1], name, modeZeroPage, 5, false, mem)
	def(codes[2], name, modeZeroPageX, 6, false, mem)
	def(codes[3], name, modeAbsolute, 6, false, mem)
	def(codes[4], name, modeAbsoluteX, 7, false, mem)
}

// combo registers the seven variants of an undocumented read-modify-write
// instruction: zp, zp,x, abs, abs,x, abs,y, (zp,x), (zp),y.
func combo(name string, codes [7]uint8, exec func(*CPU, uint16)) {
	def(codes[0], name, modeZeroPage, 5, false, exec)
	def(codes[1], name, modeZeroPageX, 6, false, exec)
	def(codes[2], name, modeAbsolute, 6, false, exec)
	def(codes[3], name, modeAbsoluteX, 7, false, exec)
	def(codes[4], name, modeAbsoluteY, 7, false, exec)
	def(codes[5], name, modeIndexedIndirect, 8, false, exec)
	def(codes[6], name, modeIndirectIndexed, 8, false, exec)
}

func flagOp(code uint8, name string, flag uint8, on bool) {
	def(code, name, modeImplied, 2, false, func(c *CPU, _ uint16) { c.setFlag(flag, on) })
}

func branchOp(code uint8, name string, flag uint8, on bool) {
	def(code, name, modeRelative, 2, false, func(c *CPU, target uint16) {
		c.branch((c.P&flag != 0) == on, target)
	})
}

func init() {
	read := func(c *CPU, addr uint16) uint8 { return c.bus.Read(addr) }

	group("ADC", [8]uint8{0x69, 0x65, 0x75, 0x6D, 0x7D, 0x79, 0x61, 0x71}, func(c *CPU, a uint16) { c.adc(read(c, a)) })
	group("SBC", [8]uint8{0xE9, 0xE5, 0xF5, 0xED, 0xFD, 0xF9, 0xE1, 0xF1}, func(c *CPU, a uint16) { c.sbc(read(c, a)) })
	group("AND", [8]uint8{0x29, 0x25, 0x35, 0x2D, 0x3D, 0x39, 0x21, 0x31}, func(c *CPU, a uint16) { c.A &= read(c, a); c.setZN(c.A) })
	group("ORA", [8]uint8{0x09, 0x05, 0x15, 0x0D, 0x1D, 0x19, 0x01, 0x11}, func(c *CPU, a uint16) { c.A |= read(c, a); c.setZN(c.A) })
	group("EOR", [8]uint8{0x49, 0x45, 0x55, 0x4D, 0x5D, 0x59, 0x41, 0x51}, func(c *CPU, a uint16) { c.A ^= read(c, a); c.setZN(c.A) })
	group("CMP", [8]uint8{0xC9, 0xC5, 0xD5, 0xCD, 0xDD, 0xD9, 0xC1, 0xD1}, func(c *CPU, a uint16) { c.compare(c.A, read(c, a)) })
	group("LDA", [8]uint8{0xA9, 0xA5, 0xB5, 0xAD, 0xBD, 0xB9, 0xA1, 0xB1}, func(c *CPU, a uint16) { c.A = read(c, a); c.setZN(c.A) })

	sta := func(c *CPU, a uint16) { c.bus.Write(a, c.A) }
	def(0x85, "STA", modeZeroPage, 3, false, sta)
	def(0x95, "STA", modeZeroPageX, 4, false, sta)
	def(0x8D, "STA", modeAbsolute, 4, false, sta)
	def(0x9D, "STA", modeAbsoluteX, 5, false, sta)
	def(0x99, "STA", modeAbsoluteY, 5, false, sta)
	def(0x81, "STA", modeIndexedIndirect, 6, false, sta)
	def(0x91, "STA", modeIndirectIndexed, 6, false, sta)

	ldx := func(c *CPU, a uint16) { c.X = read(c, a); c.setZN(c.X) }
	def(0xA2, "LDX", modeImmediate, 2, false, ldx)
	def(0xA6, "LDX", modeZeroPage, 3, false, ldx)
	def(0xB6, "LDX", modeZeroPageY, 4, false, ldx)
	def(0xAE, "LDX", modeAbsolute, 4, false, ldx)
	def(0xBE, "LDX", modeAbsoluteY, 4, true, ldx)

	ldy := func(c *CPU, a uint16) { c.Y = read(c, a); c.setZN(c.Y) }
	def(0xA0, "LDY", modeImmediate, 2, false, ldy)
	def(0xA4, "LDY", modeZeroPage, 3, false, ldy)
	def(0xB4, "LDY", modeZeroPageX, 4, false, ldy)
	def(0xAC, "LDY", modeAbsolute, 4, false, ldy)
	def(0xBC, "LDY", modeAbsoluteX, 4, true, ldy)

	stx := func(c *CPU, a uint16) { c.bus.Write(a, c.X) }
	def(0x86, "STX", modeZeroPage, 3, false, stx)
	def(0x96, "STX", modeZeroPageY, 4, false, stx)
	def(0x8E, "STX", modeAbsolute, 4, false, stx)

	sty := func(c *CPU, a uint16) { c.bus.Write(a, c.Y) }
	def(0x84, "STY", modeZeroPage, 3, false, sty)
	def(0x94, "STY", modeZeroPageX, 4, false, sty)
	def(0x8C, "STY", modeAbsolute, 4, false, sty)

	cpx := func(c *CPU, a uint16) { c.compare(c.X, read(c, a)) }
	def(0xE0, "CPX", modeImmediate, 2, false, cpx)
	def(0xE4, "CPX", modeZeroPage, 3, false, cpx)
	def(0xEC, "CPX", modeAbsolute, 4, false, cpx)

	cpy := func(c *CPU, a uint16) { c.compare(c.Y, read(c, a)) }
	def(0xC0, "CPY", modeImmediate, 2, false, cpy)
	def(0xC4, "CPY", modeZeroPage, 3, false, cpy)
	def(0xCC, "CPY", modeAbsolute, 4, false, cpy)

	bit := func(c *CPU, a uint16) {
		v := read(c, a)
		c.setFlag(FlagZ, c.A&v == 0)
		c.setFlag(FlagV, v&0x40 != 0)
		c.setFlag(FlagN, v&0x80 != 0)
	}
	def(0x24, "BIT", modeZeroPage, 3, false, bit)
	def(0x2C, "BIT", modeAbsolute, 4, false, bit)

	inc := func(c *CPU, a uint16) { c.setZN(c.modify(a, func(v uint8) uint8 { return v + 1 })) }
	def(0xE6, "INC", modeZeroPage, 5, false, inc)
	def(0xF6, "INC", modeZeroPageX, 6, false, inc)
	def(0xEE, "INC", modeAbsolute, 6, false, inc)
	def(0xFE, "INC", modeAbsoluteX, 7, false, inc)

	dec := func(c *CPU, a uint16) { c.setZN(c.modify(a, func(v uint8) uint8 { return v - 1 })) }
	def(0xC6, "DEC", modeZeroPage, 5, false, dec)
	def(0xD6, "DEC", modeZeroPageX, 6, false, dec)
	def(0xCE, "DEC", modeAbsolute, 6, false, dec)
	def(0xDE, "DEC", modeAbsoluteX, 7, false, dec)

	shift("ASL", [5]uint8{0x0A, 0x06, 0x16, 0x0E, 0x1E}, (*CPU).asl)
	shift("LSR", [5]uint8{0x4A, 0x46, 0x56, 0x4E, 0x5E}, (*CPU).lsr)
	shift("ROL", [5]uint8{0x2A, 0x26, 0x36, 0x2E, 0x3E}, (*CPU).rol)
	shift("ROR", [5]uint8{0x6A, 0x66, 0x76, 0x6E, 0x7E}, (*CPU).ror)

	branchOp(0x10, "BPL", FlagN, false)
	branchOp(0x30, "BMI", FlagN, true)
	branchOp(0x50, "BVC", FlagV, false)
	branchOp(0x70, "BVS", FlagV, true)
	branchOp(0x90, "BCC", FlagC, false)
	branchOp(0xB0, "BCS", FlagC, true)
	branchOp(0xD0, "BNE", FlagZ, false)
	branchOp(0xF0, "BEQ", FlagZ, true)

	flagOp(0x18, "CLC", FlagC, false)
	flagOp(0x38, "SEC", FlagC, true)
	flagOp(0x58, "CLI", FlagI, false)
	flagOp(0x78, "SEI", FlagI, true)
	flagOp(0xB8, "CLV", FlagV, false)
	flagOp(0xD8, "CLD", FlagD, false)
	flagOp(0xF8, "SED", FlagD, true)

	def(0xAA, "TAX", modeImplied, 2, false, func(c *CPU, _ uint16) { c.X = c.A; c.setZN(c.X) })
	def(0xA8, "TAY", modeImplied, 2, false, func(c *CPU, _ uint16) { c.Y = c.A; c.setZN(c.Y) })
	def(0x8A, "TXA", modeImplied, 2, false, func(c *CPU, _ uint16) { c.A = c.X; c.setZN(c.A) })
	def(0x98, "TYA", modeImplied, 2, false, func(c *CPU, _ uint16) { c.A = c.Y; c.setZN(c.A) })
	def(0xBA, "TSX", modeImplied, 2, false, func(c *CPU, _ uint16) { c.X = c.SP; c.setZN(c.X) })
	def(0x9A, "TXS", modeImplied, 2, false, func(c *CPU, _ uint16) { c.SP = c.X })
	def(0xE8, "INX", modeImplied, 2, false, func(c *CPU, _ uint16) { c.X++; c.setZN(c.X) })
	def(0xC8, "INY", modeImplied, 2, false, func(c *CPU, _ uint16) { c.Y++; c.setZN(c.Y) })
	def(0xCA, "DEX", modeImplied, 2, false, func(c *CPU, _ uint16) { c.X--; c.setZN(c.X) })
	def(0x88, "DEY", modeImplied, 2, false, func(c *CPU, _ uint16) { c.Y--; c.setZN(c.Y) })

	def(0x48, "PHA", modeImplied, 3, false, func(c *CPU, _ uint16) { c.push(c.A) })
	def(0x08, "PHP", modeImplied, 3, false, func(c *CPU, _ uint16) { c.push(c.P | FlagB | FlagU) })
	def(0x68, "PLA", modeImplied, 4, false, func(c *CPU, _ uint16) { c.A = c.pull(); c.setZN(c.A) })
	def(0x28, "PLP", modeImplied, 4, false, func(c *CPU, _ uint16) { c.P = c.pull()&^FlagB | FlagU })

	def(0x4C, "JMP", modeAbsolute, 3, false, func(c *CPU, a uint16) { c.PC = a })
	def(0x6C, "JMP", modeIndirect, 5, false, func(c *CPU, a uint16) { c.PC = a })
	def(0x20, "JSR", modeAbsolute, 6, false, func(c *CPU, a uint16) {
		c.push16(c.PC - 1)
		c.PC = a
	})
	def(0x60, "RTS", modeImplied, 6, false, func(c *CPU, _ uint16) { c.PC = c.pull16() + 1 })
	def(0x40, "RTI", modeImplied, 6, false, func(c *CPU, _ uint16) {
		c.P = c.pull()&^FlagB | FlagU
		c.PC = c.pull16()
	})
	def(0x00, "BRK", modeImplied, 7, false, func(c *CPU, _ uint16) {
		c.PC++
		c.interrupt(VectorIRQ, true)
	})

	nop := func(*CPU, uint16) {}
	def(0xEA, "NOP", modeImplied, 2, false, nop)

	// undocumented opcodes seen in C64 and NES music drivers
	for _, code := range []uint8{0x1A, 0x3A, 0x5A, 0x7A, 0xDA, 0xFA} {
		def(code, "NOP", modeImplied, 2, false, nop)
	}
	for _, code := range []uint8{0x80, 0x82, 0x89, 0xC2, 0xE2} {
		def(code, "NOP", modeImmediate, 2, false, nop)
	}
	for _, code := range []uint8{0x04, 0x44, 0x64} {
		def(code, "NOP", modeZeroPage, 3, false, nop)
	}
	for _, code := range []uint8{0x14, 0x34, 0x54, 0x74, 0xD4, 0xF4} {
		def(code, "NOP", modeZeroPageX, 4, false, nop)
	}
	def(0x0C, "NOP", modeAbsolute, 4, false, nop)
	for _, code := range []uint8{0x1C, 0x3C, 0x5C, 0x7C, 0xDC, 0xFC} {
		def(code, "NOP", modeAbsoluteX, 4, true, nop)
	}

	def(0xEB, "SBC", modeImmediate, 2, false, func(c *CPU, a uint16) { c.sbc(read(c, a)) })

	lax := func(c *CPU, a uint16) { c.A = read(c, a); c.X = c.A; c.setZN(c.A) }
	def(0xA7, "LAX", modeZeroPage, 3, false, lax)
	def(0xB7, "LAX", modeZeroPageY, 4, false, lax)
	def(0xAF, "LAX", modeAbsolute, 4, false, lax)
	def(0xBF, "LAX", modeAbsoluteY, 4, true, lax)
	def(0xA3, "LAX", modeIndexedIndirect, 6, false, lax)
	def(0xB3, "LAX", modeIndirectIndexed, 5, true, lax)

	sax := func(c *CPU, a uint16) { c.bus.Write(a, c.A&c.X) }
	def(0x87, "SAX", modeZeroPage, 3, false, sax)
	def(0x97, "SAX", modeZeroPageY, 4, false, sax)
	def(0x8F, "SAX", modeAbsolute, 4, false, sax)
	def(0x83, "SAX", modeIndexedIndirect, 6, false, sax)

	combo("DCP", [7]uint8{0xC7, 0xD7, 0xCF, 0xDF, 0xDB, 0xC3, 0xD3}, func(c *CPU, a uint16) {
		c.compare(c.A, c.modify(a, func(v uint8) uint8 { return v - 1 }))
	})
	combo("ISC", [7]uint8{0xE7, 0xF7, 0xEF, 0xFF, 0xFB, 0xE3, 0xF3}, func(c *CPU, a uint16) {
		c.sbc(c.modify(a, func(v uint8) uint8 { return v + 1 }))
	})
	combo("SLO", [7]uint8{0x07, 0x17, 0x0F, 0x1F, 0x1B, 0x03, 0x13}, func(c *CPU, a uint16) {
		c.A |= c.modify(a, c.asl)
		c.setZN(c.A)
	})
	combo("RLA", [7]uint8{0x27, 0x37, 0x2F, 0x3F, 0x3B, 0x23, 0x33}, func(c *CPU, a uint16) {
		c.A &= c.modify(a, c.rol)
		c.setZN(c.A)
	})
	combo("SRE", [7]uint8{0x47, 0x57, 0x4F, 0x5F, 0x5B, 0x43, 0x53}, func(c *CPU, a uint16) {
		c.A ^= c.modify(a, c.lsr)
		c.setZN(c.A)
	})
	combo("RRA", [7]uint8{0x67, 0x77, 0x6F, 0x7F, 0x7B, 0x63, 0x73}, func(c *CPU, a uint16) {
		c.adc(c.modify(a, c.ror))
	})

	anc := func(c *CPU, a uint16) {
		c.A &= read(c, a)
		c.setZN(c.A)
		c.setFlag(FlagC, c.A&0x80 != 0)
	}
	def(0x0B, "ANC", modeImmediate, 2, false, anc)
	def(0x2B, "ANC", modeImmediate, 2, false, anc)
	def(0x4B, "ALR", modeImmediate, 2, false, func(c *CPU, a uint16) {
		c.A = c.lsr(c.A & read(c, a))
	})
}

// Mnemonic returns the assembler name of an opcode, or "???" if the core
// does not implement it.
func Mnemonic(code uint8) string {
	if opcodes[code].exec == nil {
		return "???"
	}
	return opcodes[code].name
}
