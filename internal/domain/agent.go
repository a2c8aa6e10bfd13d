package domain

// SpectatorID marks an unauthenticated caller.
const SpectatorID = "spectator"

// Agent is the authenticated caller identity.
type Agent struct {
	ID         string
	ExternalID string
	Name       string
}

// IsSpectator reports whether the agent is read-only.
func (a Agent) IsSpectator() bool {
	return a.ID == "" || a.ID == SpectatorID
}

// Spectator returns the read-only identity.
func Spectator() Agent {
	return Agent{ID: SpectatorID, ExternalID: SpectatorID, Name: "Spectator"}
}

// AgentStats is an agent's public activity, derived from auctions, bids and
// wallets. There is no separate agent registry.
type AgentStats struct {
	AgentID        string
	AuctionsListed int
	TotalBids      int
	TotalWins      int
	Leading        int
	HasWallet      bool
}

// Known reports whether the agent has left any trace in the marketplace.
func (s AgentStats) Known() bool {
	return s.HasWallet || s.AuctionsListed > 0 || s.TotalBids > 0
}
