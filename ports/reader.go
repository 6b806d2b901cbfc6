package ports

import (
	"context"

	"panelfit/domain/panel"
)

// PanelReader provides the materialized panel table consumed by the pipeline.
type PanelReader interface {
	ReadPanel(ctx context.Context) (*panel.Table, error)
}

// ReadStats reports what a reader did to the raw rows.
type ReadStats struct {
	RowsRead    int
	RowsDropped int // rows with missing or non-finite values
}
