package importer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/LeventeLantos/lead-outreach/internal/model"
	"github.com/LeventeLantos/lead-outreach/internal/repo"
)

type LeadInserter interface {
	Insert(ctx context.Context, nl model.NewLead) (model.Lead, error)
}

type Report struct {
	Rows       int               `json:"rows"`
	Inserted   int               `json:"inserted"`
	Duplicates int               `json:"duplicates"`
	Errors     []ValidationError `json:"errors"`
}

type Importer struct {
	leads LeadInserter
	log   *zap.Logger
}

func New(leads LeadInserter, log *zap.Logger) *Importer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{leads: leads, log: log}
}

// Import parses r and inserts every valid row as a not_sent lead. Leads whose
// phone is already known are counted as duplicates and skipped.
func (i *Importer) Import(ctx context.Context, r io.Reader) (Report, error) {
	parsed, err := ParseCSV(r)
	if err != nil {
		return Report{}, err
	}

	rep := Report{Rows: parsed.Rows, Errors: parsed.Errors}
	if rep.Errors == nil {
		rep.Errors = []ValidationError{}
	}
	for _, ve := range parsed.Errors {
		i.log.Info("csv row dropped", zap.Int("row", ve.Row), zap.String("field", ve.Field), zap.String("reason", ve.Message))
	}

	for _, nl := range parsed.Leads {
		l, err := i.leads.Insert(ctx, nl)
		if errors.Is(err, repo.ErrDuplicatePhone) {
			rep.Duplicates++
			continue
		}
		if err != nil {
			return rep, fmt.Errorf("import lead %q: %w", nl.Phone, err)
		}
		rep.Inserted++
		i.log.Debug("lead imported", zap.String("lead_id", l.ID))
	}

	i.log.Info("csv import finished",
		zap.Int("rows", rep.Rows),
		zap.Int("inserted", rep.Inserted),
		zap.Int("duplicates", rep.Duplicates),
		zap.Int("invalid", len(rep.Errors)),
	)
	return rep, nil
}
