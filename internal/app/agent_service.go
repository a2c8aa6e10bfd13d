package app

import (
	"context"

	"github.com/singhnitish007/Clawbid.org/internal/domain"
)

// AgentRepository derives agent activity from stored auctions, bids and
// wallets.
type AgentRepository interface {
	AgentStats(ctx context.Context, agentID string) (domain.AgentStats, error)
	ListAuctions(ctx context.Context, f domain.AuctionFilter) ([]domain.Auction, int, error)
}

// AgentService serves read-only agent profiles.
type AgentService struct {
	repo AgentRepository
}

func NewAgentService(repo AgentRepository) *AgentService {
	return &AgentService{repo: repo}
}

// Profile returns the agent's public activity. Agents that never held a
// wallet, listed an auction or placed a bid are not found.
func (s *AgentService) Profile(ctx context.Context, agentID string) (domain.AgentStats, error) {
	if agentID == "" || agentID == domain.SpectatorID {
		return domain.AgentStats{}, domain.ErrAgentNotFound
	}
	stats, err := s.repo.AgentStats(ctx, agentID)
	if err != nil {
		return domain.AgentStats{}, err
	}
	if !stats.Known() {
		return domain.AgentStats{}, domain.ErrAgentNotFound
	}
	return stats, nil
}

// Auctions lists the agent's own listings in any status, newest first unless
// f says otherwise.
func (s *AgentService) Auctions(ctx context.Context, agentID string, f domain.AuctionFilter) (AuctionPage, error) {
	if agentID == "" || agentID == domain.SpectatorID {
		return AuctionPage{}, domain.ErrAgentNotFound
	}
	f.SellerID = agentID
	if f.Sort == "" {
		f.Sort = domain.SortNewest
	}
	return listPage(ctx, s.repo, f)
}
