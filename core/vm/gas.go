package vm

// Gas cost constants named after the EIPs that introduced or changed them,
// current as of the Cancun fork (spec §4.3's target instruction set).
const (
	GasQuickStep   = 2
	GasFastestStep = 3
	GasFastStep    = 5
	GasMidStep     = 8
	GasSlowStep    = 10
	GasExtStep     = 20

	GasSha3Word      = 6
	GasCopyWord      = 3
	GasExpByte       = 50 // EIP-160
	GasMemoryWord    = 3
	GasLogData       = 8
	GasLogTopic      = 375
	GasLog           = 375
	GasCreate        = 32000
	GasCreateData    = 200
	GasCallStipend   = 2300
	GasCallValue     = 9000
	GasNewAccount    = 25000
	GasSelfdestruct  = 5000
	GasSelfdestructRefund = 24000 // pre-EIP-3529; unused post-London, kept for reference

	// EIP-2929 cold/warm access costs.
	ColdAccountAccessCost = 2600
	ColdSloadCost         = 2100
	WarmStorageReadCost   = 100
	WarmAccountAccessCost = 100 // alias of WarmStorageReadCost for address access

	// EIP-2200/3529 SSTORE costs.
	SstoreSetGas     = 20000
	SstoreResetGas   = 5000 - ColdSloadCost
	SstoreClearsRefund = 4800

	MaxRefundQuotient = 5 // EIP-3529: refund capped at gasUsed/5

	MaxCodeSize     = 24576      // EIP-170
	MaxInitCodeSize = 2 * 24576  // EIP-3860

	InitCodeWordGas = 2 // EIP-3860: per 32-byte word of init code
)
