package relax

// Base kinds: one per "shape" of variable fragment a target can emit. Each
// target owns its own small numbering; they never collide because a given
// link only ever loads one target's table.
const (
	BaseSHCond = iota
	BaseSHUncond
)

// SH subtypes (spec.md §4.C7 scenario, §8 "SH conditional branch"): a
// conditional branch is 2 bytes within ±128 bytes, else the 6-byte
// inverted-branch+brl trampoline; displacement unknown at assembly time
// starts at the 6-byte form directly (UNDEF starts at the widest subtype
// for conditionals, since gas can't know in advance whether a forward
// symbol will resolve in range).
const (
	SHCondDisp8 = iota
	SHCondDisp32
)

const (
	SHUncond12 = iota
	SHUncond32
)

// SHTable is the SH relaxation table. UNCOND12 (2 bytes, ±4096) upgrades to
// UNCOND32 (14 bytes: inverted branch + brl trampoline loading a 32-bit
// address), matching spec.md §8 scenario 5 exactly (10000-byte displacement
// forces the 14-byte form).
func SHTable() Table {
	return Table{
		{BaseSHCond, SHCondDisp8}:  {ForwardMax: 128, BackwardMax: 128, Length: 2, Next: SHCondDisp32},
		{BaseSHCond, SHCondDisp32}: {ForwardMax: 1 << 30, BackwardMax: 1 << 30, Length: 6, Next: SHCondDisp32},
		{BaseSHUncond, SHUncond12}: {ForwardMax: 4094, BackwardMax: 4096, Length: 2, Next: SHUncond32},
		{BaseSHUncond, SHUncond32}: {ForwardMax: 1 << 30, BackwardMax: 1 << 30, Length: 14, Next: SHUncond32},
	}
}

// HP-PA base kinds and subtypes: PCREL17F (conditional/unconditional
// branch+link, ±17-bit signed word displacement) upgrading to a long
// trampoline that loads a 32-bit address (spec.md §8 "Branch displacement
// exactly at ±max signed 17-bit... emits short form; one beyond, long").
const (
	BaseHPPABranch = iota
)

const (
	HPPAPCRel17 = iota
	HPPAPCRelLong
)

// max signed 17-bit word displacement, i.e. ±(2^16-1) words = ±(2^16-1)*4 bytes.
const hppa17BitMaxWords = (1 << 16) - 1

func HPPATable() Table {
	maxBytes := int64(hppa17BitMaxWords) * 4
	return Table{
		{BaseHPPABranch, HPPAPCRel17}:   {ForwardMax: maxBytes, BackwardMax: maxBytes, Length: 4, Next: HPPAPCRelLong},
		{BaseHPPABranch, HPPAPCRelLong}: {ForwardMax: 1 << 31, BackwardMax: 1 << 31, Length: 12, Next: HPPAPCRelLong},
	}
}

// W65 has the simplest chain in the corpus: an 8-bit relative branch
// upgrading to a 3-byte absolute jmp.
const BaseW65Branch = 0

const (
	W65BraShort = iota
	W65BraLong
)

func W65Table() Table {
	return Table{
		{BaseW65Branch, W65BraShort}: {ForwardMax: 127, BackwardMax: 128, Length: 2, Next: W65BraLong},
		{BaseW65Branch, W65BraLong}:  {ForwardMax: 1 << 16, BackwardMax: 1 << 16, Length: 3, Next: W65BraLong},
	}
}

// Alpha has no variable-length relaxation in this core (ldgp always expands
// to a fixed two-instruction pair resolved via GPDISP fixups, not fragment
// growth), so there is no AlphaTable: the assembler always emits the widest
// (only) form and lets the fixups carry the GP value, matching
// obj-ecoff.c's treatment of gp-relative relocations as link-time-only.
