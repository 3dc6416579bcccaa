package main

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"liquidityDesk/internal/model"
	"liquidityDesk/internal/registry"
)

type platformRow struct {
	ID                model.PlatformID `json:"id"`
	Name              string           `json:"name"`
	PositionManager   common.Address   `json:"position_manager"`
	PoolDeployer      common.Address   `json:"pool_deployer"`
	FeeTiers          []uint32         `json:"fee_tiers"`
	SupportsMulticall bool             `json:"supports_multicall"`
}

type chainRow struct {
	ChainID    uint64          `json:"chain_id"`
	Name       string          `json:"name"`
	Automation bool            `json:"automation"`
	Platforms  []platformRow   `json:"platforms"`
	Tokens     []model.Token   `json:"tokens"`
	Executor   *common.Address `json:"executor,omitempty"`
}

func chainsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chains",
		Short: "List supported chains, platforms and known tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd, chainRows(registry.Default()))
		},
	}
}

func chainRows(reg *registry.Registry) []chainRow {
	var rows []chainRow
	for _, id := range reg.ChainIDs() {
		c, err := reg.Chain(id)
		if err != nil {
			continue
		}
		row := chainRow{ChainID: c.ChainID, Name: c.Name, Automation: c.AutomationEnabled(), Executor: c.ExecutorAddress}
		for _, pid := range c.PlatformIDs() {
			p := c.Platforms[pid]
			row.Platforms = append(row.Platforms, platformRow{
				ID:                p.ID,
				Name:              p.Name,
				PositionManager:   p.PositionManager,
				PoolDeployer:      p.PoolDeployer(),
				FeeTiers:          p.FeeTiers(),
				SupportsMulticall: p.SupportsMulticall,
			})
		}
		for _, token := range c.Tokens {
			row.Tokens = append(row.Tokens, token)
		}
		sort.Slice(row.Tokens, func(i, j int) bool { return row.Tokens[i].Symbol < row.Tokens[j].Symbol })
		rows = append(rows, row)
	}
	return rows
}
