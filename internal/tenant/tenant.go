// Package tenant holds the static configuration of each hosted governance
// deployment: quorum counting rules, token parameters, archive location,
// and feature flags. Tenants are a closed compile-time set.
package tenant

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"govhub/api/internal/proposal"
)

// ErrUnsupportedTenant is returned for slugs outside the hosted set.
var ErrUnsupportedTenant = errors.New("unsupported tenant")

// Config is one tenant's governance parameters.
type Config struct {
	Slug        string
	DisplayName string

	// GovernorAddress is the on-chain governor contract.
	GovernorAddress common.Address
	// TokenAddress is the voting token used for supply lookups.
	TokenAddress common.Address
	// TokenDecimals scales legacy approval budgets.
	TokenDecimals int

	// QuorumPolicy selects the vote buckets counted toward quorum.
	QuorumPolicy proposal.QuorumPolicy
	// QuorumBps is the default quorum in basis points of votable supply,
	// used when a proposal row carries no absolute quorum.
	QuorumBps int64
	// DisapprovalThresholdPct overrides the optimistic display veto
	// threshold; zero means the built-in default.
	DisapprovalThresholdPct int
	// BudgetChangeTime is the approval budget unit cutover; zero means the
	// tenant never recorded whole-token budgets.
	BudgetChangeTime time.Time

	// ArchivePrefix is the object key prefix for this tenant's archived
	// governance data.
	ArchivePrefix string
	// ShowParticipationRate enables the participation figure on delegate
	// vote pages.
	ShowParticipationRate bool
	// Archived marks tenants served entirely from the archive export.
	Archived bool
}

// ProposalContext projects the tenant parameters into the calculation
// context attached to every proposal.
func (c Config) ProposalContext() proposal.Context {
	return proposal.Context{
		Tenant:                  c.Slug,
		QuorumPolicy:            c.QuorumPolicy,
		DisapprovalThresholdPct: c.DisapprovalThresholdPct,
		BudgetChangeTime:        c.BudgetChangeTime,
		TokenDecimals:           c.TokenDecimals,
	}
}

var tenants = map[string]Config{
	"optimism": {
		Slug:                  "optimism",
		DisplayName:           "Optimism",
		GovernorAddress:       common.HexToAddress("0xcDF27F107725988f2261Ce2256bDfCdE8B382B10"),
		TokenAddress:          common.HexToAddress("0x4200000000000000000000000000000000000042"),
		TokenDecimals:         18,
		QuorumPolicy:          proposal.QuorumForAbstain,
		QuorumBps:             300,
		BudgetChangeTime:      time.Date(2024, 2, 21, 0, 0, 0, 0, time.UTC),
		ArchivePrefix:         "optimism",
		ShowParticipationRate: true,
	},
	"uniswap": {
		Slug:            "uniswap",
		DisplayName:     "Uniswap",
		GovernorAddress: common.HexToAddress("0x408ED6354d4973f66138C91495F2f2FCbd8724C3"),
		TokenAddress:    common.HexToAddress("0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984"),
		TokenDecimals:   18,
		QuorumPolicy:    proposal.QuorumForOnly,
		QuorumBps:       400,
		ArchivePrefix:   "uniswap",
	},
	"scroll": {
		Slug:            "scroll",
		DisplayName:     "Scroll",
		GovernorAddress: common.HexToAddress("0x2f3F2054776bd3C2fc30d750734A8F539Bb214f0"),
		TokenAddress:    common.HexToAddress("0xd29687c813D741E2F938F4aC377128810E217b1b"),
		TokenDecimals:   18,
		QuorumPolicy:    proposal.QuorumAllVotes,
		QuorumBps:       200,
		ArchivePrefix:   "scroll",
	},
	"ens": {
		Slug:            "ens",
		DisplayName:     "ENS",
		GovernorAddress: common.HexToAddress("0x323A76393544d5ecca80cd6ef2A560C6a395b7E3"),
		TokenAddress:    common.HexToAddress("0xC18360217D8F7Ab5e7c516566761Ea12Ce7F9D72"),
		TokenDecimals:   18,
		QuorumPolicy:    proposal.QuorumForAbstain,
		QuorumBps:       100,
		ArchivePrefix:   "ens",
		Archived:        true,
	},
}

// Lookup resolves a tenant slug case-insensitively.
func Lookup(slug string) (Config, error) {
	c, ok := tenants[strings.ToLower(strings.TrimSpace(slug))]
	if !ok {
		return Config{}, fmt.Errorf("%q: %w", slug, ErrUnsupportedTenant)
	}
	return c, nil
}

// All lists the hosted tenants in no particular order.
func All() []Config {
	out := make([]Config, 0, len(tenants))
	for _, c := range tenants {
		out = append(out, c)
	}
	return out
}
