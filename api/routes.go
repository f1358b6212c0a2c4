package api

const (
	// PingEndpoint reports that the server is alive.
	PingEndpoint = "/ping"

	// IssueTokenEndpoint issues a blind signature over a voter's blinded
	// token, one time per eligible voter.
	IssueTokenEndpoint = "/issuer/token"
	// IssuerPubKeyEndpoint returns the issuer's RSA public key.
	IssuerPubKeyEndpoint = "/issuer/pubkey"
	// VoterIDURLParam names the {voter_id} path parameter.
	VoterIDURLParam = "voter_id"
	// VoterStatusEndpoint reports a single voter's eligibility/registration state.
	VoterStatusEndpoint = "/issuer/status/{" + VoterIDURLParam + "}"

	// CastVoteEndpoint accepts a credential and a candidate choice.
	CastVoteEndpoint = "/ballot/vote"
	// TalliesEndpoint returns the current per-candidate vote counts.
	TalliesEndpoint = "/ballot/tallies"
	// ChainEndpoint returns the full block chain.
	ChainEndpoint = "/ballot/chain"
	// BlockIndexURLParam names the {index} path parameter.
	BlockIndexURLParam = "index"
	// ChainBlockEndpoint returns a single block by index.
	ChainBlockEndpoint = "/ballot/chain/{" + BlockIndexURLParam + "}"
	// VerifyChainEndpoint recomputes and checks the chain's integrity.
	VerifyChainEndpoint = "/ballot/verify"
	// StatsEndpoint returns aggregate ledger statistics.
	StatsEndpoint = "/ballot/stats"
)
