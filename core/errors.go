package core

// errors.go collects the sentinel errors returned by the storage and
// validation layers. Grounded on the teacher's pkg/utils/errors.go
// convention of wrapping with context via fmt.Errorf("%w", ...) rather
// than bespoke error structs.

import "errors"

// Storage-layer errors.
var (
	ErrNotFound      = errors.New("core: object not found")
	ErrInvalidMagic  = errors.New("core: invalid file magic")
	ErrTruncated     = errors.New("core: truncated file")
	ErrAlreadyExists = errors.New("core: object already exists")
	ErrTagLocked     = errors.New("core: tag file locked by another process")
	ErrPackNotSealed = errors.New("core: pack file is not finalized")
	ErrPackSealed    = errors.New("core: pack file is already finalized")
)

// Chain validation errors, one per invariant in the block verifier.
var (
	ErrWrongPreviousBlock          = errors.New("core: block does not extend the expected tip")
	ErrBlockDateInPast             = errors.New("core: block date does not sort after its parent's date")
	ErrBlockDateInFuture           = errors.New("core: block date skips ahead of the expected epoch sequence")
	ErrNonExistentSlot             = errors.New("core: slot id does not index the epoch's slot-leader schedule")
	ErrWrongSlotLeader             = errors.New("core: leader key does not match the epoch's slot-leader schedule")
	ErrWrongBlockVersion           = errors.New("core: block version is not known to be adopted")
	ErrUnsupportedBlockSignature   = errors.New("core: proxy-light block signatures are not supported")
	ErrMissingUtxo                 = errors.New("core: transaction spends a non-existent output")
	ErrDuplicateTxo                = errors.New("core: transaction output already exists in the UTxO set")
	ErrAddressMismatch             = errors.New("core: witness does not match the spent output's address")
	ErrInputsTooBig                = errors.New("core: sum of transaction inputs overflows")
	ErrOutputsTooBig               = errors.New("core: sum of transaction outputs overflows")
	ErrOutputsExceedInputs         = errors.New("core: transaction outputs plus fee exceed inputs")
	ErrFeeBelowPolicy               = errors.New("core: transaction fee is below the policy-computed minimum")
	ErrUnknownProposer              = errors.New("core: update proposal issuer is not a known stakeholder")
	ErrUnknownVoter                 = errors.New("core: update vote issuer is not a known stakeholder")
	ErrInsufficientProposerStake    = errors.New("core: proposer stake is below the update-proposal threshold")
	ErrInsufficientVoterStake       = errors.New("core: voter stake is below the update-vote threshold")
	ErrMissingProposal               = errors.New("core: vote references a proposal that is not active")
	ErrDuplicateProposal             = errors.New("core: an identical update proposal is already active")
	ErrBlockTooLarge                 = errors.New("core: block exceeds the maximum configured size")
	ErrHeaderTooLarge                = errors.New("core: block header exceeds the maximum configured size")
	ErrTxTooLarge                    = errors.New("core: transaction exceeds the maximum configured size")
	ErrEmptyLeaderSchedule           = errors.New("core: boundary block carries an empty slot-leader schedule")
)

// Synchronizer / peer errors.
var (
	ErrNoPeers           = errors.New("core: no peers available for synchronization")
	ErrPeerTipUnknown    = errors.New("core: peer did not respond with a chain tip")
	ErrRollbackTooDeep   = errors.New("core: requested rollback exceeds the epoch stability depth")
	ErrIncompatibleMagic = errors.New("core: peer protocol magic does not match local network")
)
