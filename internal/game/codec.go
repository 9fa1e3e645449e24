package game

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Fixed record widths. Optional fields are zero-padded so every record of a
// type has the same size.
const (
	BusinessRecordSize = 1 + 8 + 8 + 2 + 1 + 8*MaxUpgradeLevel + 8 + 8 + 8 + 1 + 4 + 5
	SlotRecordSize     = 4 + 1 + BusinessRecordSize + 8
	PlayerRecordSize   = 8 + 32 + SlotCount*SlotRecordSize + 1 + 1 + 4 + 4*8 + 1 + 4 + 4 + 1
)

const (
	slotTierMask   = 0x03
	slotUnlocked   = 0x04
	slotOccupied   = 0x08
	slotPaid       = 0x10
	playerEntryFee = 0x01
)

var playerDiscriminator = func() [8]byte {
	sum := sha256.Sum256([]byte("account:PlayerCompact"))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}()

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

func appendBusiness(buf []byte, b *Business) []byte {
	buf = append(buf, byte(b.kind))
	buf = binary.LittleEndian.AppendUint64(buf, b.baseInvested)
	buf = binary.LittleEndian.AppendUint64(buf, b.totalInvested)
	buf = binary.LittleEndian.AppendUint16(buf, b.dailyRateBps)
	buf = append(buf, b.upgradeLevel)
	for _, c := range b.upgradeHistory {
		buf = binary.LittleEndian.AppendUint64(buf, c)
	}
	buf = binary.LittleEndian.AppendUint64(buf, b.totalEarned)
	// retired per-entry claim stamp; always zero
	buf = binary.LittleEndian.AppendUint64(buf, 0)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(b.createdAt))
	buf = append(buf, boolByte(b.active))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(b.purchasedAt))
	buf = append(buf, boolByte(b.lastClaimAt.IsSet()))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(b.lastClaimAt))
	return buf
}

func appendSlot(buf []byte, s *Slot) []byte {
	flags := uint32(s.tier) & slotTierMask
	if s.unlocked {
		flags |= slotUnlocked
	}
	if s.occupied {
		flags |= slotOccupied
	}
	if s.paid {
		flags |= slotPaid
	}
	buf = binary.LittleEndian.AppendUint32(buf, flags)
	if s.occupant != nil {
		buf = append(buf, 1)
		buf = appendBusiness(buf, s.occupant)
	} else {
		buf = append(buf, 0)
		buf = append(buf, make([]byte, BusinessRecordSize)...)
	}
	buf = binary.LittleEndian.AppendUint64(buf, s.amountPaid)
	return buf
}

// MarshalBinary encodes the ledger as a PlayerRecordSize little-endian record.
func (p *Player) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, PlayerRecordSize)
	buf = append(buf, playerDiscriminator[:]...)
	buf = append(buf, p.owner[:]...)
	for i := range p.slots {
		buf = appendSlot(buf, &p.slots[i])
	}
	buf = append(buf, p.unlockedSlots, p.premiumSlots)
	var flags uint32
	if p.entryPaid {
		flags |= playerEntryFee
	}
	buf = binary.LittleEndian.AppendUint32(buf, flags)
	buf = binary.LittleEndian.AppendUint64(buf, p.totalInvested)
	buf = binary.LittleEndian.AppendUint64(buf, p.totalUpgradeSpent)
	buf = binary.LittleEndian.AppendUint64(buf, p.totalSlotSpent)
	buf = binary.LittleEndian.AppendUint64(buf, p.totalEarned)
	buf = append(buf, boolByte(p.entitled))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(p.createdAt))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(p.firstBusinessAt))
	buf = append(buf, 0)
	if len(buf) != PlayerRecordSize {
		return nil, fmt.Errorf("encode player: wrote %d bytes, want %d", len(buf), PlayerRecordSize)
	}
	return buf, nil
}

type recordReader struct {
	buf []byte
	off int
	err error
}

func (r *recordReader) fail(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s (offset %d)", ErrLayout, fmt.Sprintf(format, args...), r.off)
	}
}

func (r *recordReader) take(n int) []byte {
	if r.err != nil {
		return make([]byte, n)
	}
	if r.off+n > len(r.buf) {
		r.fail("truncated")
		return make([]byte, n)
	}
	out := r.buf[r.off : r.off+n]
	r.off += n
	return out
}

func (r *recordReader) u8() uint8   { return r.take(1)[0] }
func (r *recordReader) u16() uint16 { return binary.LittleEndian.Uint16(r.take(2)) }
func (r *recordReader) u32() uint32 { return binary.LittleEndian.Uint32(r.take(4)) }
func (r *recordReader) u64() uint64 { return binary.LittleEndian.Uint64(r.take(8)) }

func (r *recordReader) boolean() bool {
	switch r.u8() {
	case 0:
		return false
	case 1:
		return true
	default:
		r.fail("bool out of range")
		return false
	}
}

func (r *recordReader) business() Business {
	var b Business
	b.kind = BusinessKind(r.u8())
	if !b.kind.Valid() {
		r.fail("unknown business kind %d", uint8(b.kind))
	}
	b.baseInvested = r.u64()
	b.totalInvested = r.u64()
	b.dailyRateBps = r.u16()
	b.upgradeLevel = r.u8()
	for i := range b.upgradeHistory {
		b.upgradeHistory[i] = r.u64()
	}
	b.totalEarned = r.u64()
	_ = r.u64()
	b.createdAt = int64(r.u64())
	b.active = r.boolean()
	b.purchasedAt = CompactTime(r.u32())
	hasLast := r.boolean()
	last := CompactTime(r.u32())
	if hasLast {
		b.lastClaimAt = last
	}
	return b
}

func (r *recordReader) slot() Slot {
	var s Slot
	flags := r.u32()
	s.tier = SlotTier(flags & slotTierMask)
	s.unlocked = flags&slotUnlocked != 0
	s.occupied = flags&slotOccupied != 0
	s.paid = flags&slotPaid != 0
	switch r.u8() {
	case 0:
		r.take(BusinessRecordSize)
	case 1:
		b := r.business()
		s.occupant = &b
	default:
		r.fail("bad business tag")
	}
	if s.occupied != (s.occupant != nil) {
		r.fail("occupied flag disagrees with occupant")
	}
	s.amountPaid = r.u64()
	return s
}

// DecodePlayer parses a record written by MarshalBinary.
func DecodePlayer(data []byte) (*Player, error) {
	if len(data) != PlayerRecordSize {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrLayout, len(data), PlayerRecordSize)
	}
	r := &recordReader{buf: data}
	if [8]byte(r.take(8)) != playerDiscriminator {
		return nil, fmt.Errorf("%w: bad discriminator", ErrLayout)
	}
	p := &Player{}
	copy(p.owner[:], r.take(32))
	for i := range p.slots {
		p.slots[i] = r.slot()
	}
	p.unlockedSlots = r.u8()
	p.premiumSlots = r.u8()
	flags := r.u32()
	p.entryPaid = flags&playerEntryFee != 0
	p.totalInvested = r.u64()
	p.totalUpgradeSpent = r.u64()
	p.totalSlotSpent = r.u64()
	p.totalEarned = r.u64()
	p.entitled = r.boolean()
	p.createdAt = CompactTime(r.u32())
	p.firstBusinessAt = CompactTime(r.u32())
	_ = r.u8()
	if r.err != nil {
		return nil, r.err
	}
	return p, nil
}

func (p *Player) UnmarshalBinary(data []byte) error {
	decoded, err := DecodePlayer(data)
	if err != nil {
		return err
	}
	*p = *decoded
	return nil
}
