package validator

import (
	"errors"

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/core/store"
)

var (
	ErrUnknownBlock       = errors.New("validator: fork-choice hash is not a known block")
	ErrNotAncestorChain   = errors.New("validator: finalized/safe/head do not form an ancestor chain")
	ErrFinalizedRegressed = errors.New("validator: finalized block number decreased")
)

// ForkChoiceState is the three-hash tuple a consensus-layer driver supplies
// to select the canonical chain, per spec §4.6.
type ForkChoiceState struct {
	Head      common.Hash
	Safe      common.Hash
	Finalized common.Hash
}

// ForkChoice maintains the canonical `number -> hash` index in st, applying
// the consensus driver's head/safe/finalized updates. It is not itself
// concurrency-safe beyond what st already guarantees; one ForkChoice
// instance is owned by one driver loop.
type ForkChoice struct {
	st                     *store.Store
	lastFinalizedNumber    uint64
	haveFinalized          bool
}

// NewForkChoice opens a ForkChoice over st.
func NewForkChoice(st *store.Store) *ForkChoice {
	return &ForkChoice{st: st}
}

// Update validates state per spec §4.6 and, if valid, advances the
// canonical head to state.Head — rewriting the number->hash index along
// the new chain and unsetting canonicity on any forked-off branch.
func (fc *ForkChoice) Update(state ForkChoiceState) error {
	headNum, err := fc.st.GetNumberByHash(state.Head)
	if err != nil {
		return ErrUnknownBlock
	}
	safeNum, err := fc.st.GetNumberByHash(state.Safe)
	if err != nil {
		return ErrUnknownBlock
	}
	finalizedNum, err := fc.st.GetNumberByHash(state.Finalized)
	if err != nil {
		return ErrUnknownBlock
	}

	if err := fc.checkAncestry(state.Head, headNum, state.Safe, safeNum); err != nil {
		return err
	}
	if err := fc.checkAncestry(state.Safe, safeNum, state.Finalized, finalizedNum); err != nil {
		return err
	}

	if fc.haveFinalized && finalizedNum < fc.lastFinalizedNumber {
		return ErrFinalizedRegressed
	}

	if err := fc.advanceHead(state.Head, headNum); err != nil {
		return err
	}

	fc.lastFinalizedNumber = finalizedNum
	fc.haveFinalized = true
	return nil
}

// checkAncestry walks back from (descHash, descNum) and confirms it
// reaches (ancHash, ancNum) at that exact number — i.e. ancestor is truly
// an ancestor of descendant, not just a lower number on a different branch.
func (fc *ForkChoice) checkAncestry(descHash common.Hash, descNum uint64, ancHash common.Hash, ancNum uint64) error {
	if ancNum > descNum {
		return ErrNotAncestorChain
	}
	if ancHash == descHash {
		return nil
	}
	cur := descHash
	for n := descNum; n > ancNum; n-- {
		header, err := fc.st.GetHeader(cur)
		if err != nil {
			return ErrUnknownBlock
		}
		cur = header.ParentHash
	}
	if cur != ancHash {
		return ErrNotAncestorChain
	}
	return nil
}

// advanceHead rewrites the canonical number->hash index to match the chain
// ending at (headHash, headNum): walking back from head until it reaches a
// number already canonically mapped to the same hash (the common ancestor
// with the previous head), overwriting the old branch's entries up to the
// new head and unsetting any canonical entries above it.
func (fc *ForkChoice) advanceHead(headHash common.Hash, headNum uint64) error {
	type step struct {
		number uint64
		hash   common.Hash
	}
	var newChain []step

	cur := headHash
	n := headNum
	for {
		canonical, err := fc.st.GetCanonicalHash(n)
		if err == nil && canonical == cur {
			break
		}
		newChain = append(newChain, step{number: n, hash: cur})
		if n == 0 {
			break
		}
		header, err := fc.st.GetHeader(cur)
		if err != nil {
			return ErrUnknownBlock
		}
		cur = header.ParentHash
		n--
	}

	for i := len(newChain) - 1; i >= 0; i-- {
		fc.st.SetCanonical(newChain[i].number, newChain[i].hash)
	}
	for n := headNum + 1; ; n++ {
		if _, err := fc.st.GetCanonicalHash(n); err != nil {
			break
		}
		fc.st.UnsetCanonical(n)
	}
	return nil
}
