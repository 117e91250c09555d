package scrape

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gradwatch-engine/internal/domain"
	"gradwatch-engine/internal/scrape/util"
	"gradwatch-engine/internal/store"
)

// PostingStore is the part of the record store ingestion writes through.
type PostingStore interface {
	Exists(ctx context.Context, externalID string) (bool, error)
	Insert(ctx context.Context, p domain.Posting) error
}

// ProcessStats counts what happened to one batch of candidates.
type ProcessStats struct {
	Added    int
	Skipped  int
	Failed   int
	AddedIDs []string
}

// PostingFromCandidate normalizes a scraped row. It fails only when a
// required field is missing; unparseable optional fields become absent.
func PostingFromCandidate(c domain.RawCandidate, now time.Time) (domain.Posting, error) {
	program, degree := util.SplitProgram(c.ProgramRaw)
	p := domain.Posting{
		ExternalID:      util.CleanText(c.ExternalID),
		Institution:     util.CleanText(c.Institution),
		Program:         program,
		DegreeLevel:     util.NormalizeDegree(degree),
		DecisionLabel:   util.CleanText(c.DecisionLabel),
		AddedDateRaw:    util.CleanText(c.AddedDateRaw),
		Season:          util.CleanText(c.Season),
		ApplicantStatus: util.NormalizeStatus(c.Status),
		GPA:             util.ParseGPA(c.GPA),
		QuantScore:      util.ParseGRE(c.Quant),
		VerbalScore:     util.ParseGRE(c.Verbal),
		WritingScore:    util.ParseWriting(c.Writing),
		Comment:         util.CleanText(c.Comment),
		IngestedAt:      now.UTC(),
	}

	switch {
	case p.ExternalID == "":
		return domain.Posting{}, errors.New("candidate: missing external id")
	case p.Institution == "":
		return domain.Posting{}, fmt.Errorf("candidate %s: missing institution", p.ExternalID)
	case p.Program == "":
		return domain.Posting{}, fmt.Errorf("candidate %s: missing program", p.ExternalID)
	case p.DecisionLabel == "":
		return domain.Posting{}, fmt.Errorf("candidate %s: missing decision", p.ExternalID)
	}

	if added, ok := util.ParseAddedDate(p.AddedDateRaw); ok {
		p.AddedDate = &added
		if dd, ok := util.ResolveDecisionDate(p.DecisionLabel, added); ok {
			p.DecisionDate = &dd
		}
	}
	return p, nil
}

// ProcessCandidates inserts every candidate not already stored. Failures are
// per candidate and never stop the batch.
func ProcessCandidates(ctx context.Context, st PostingStore, cands []domain.RawCandidate, now time.Time) ProcessStats {
	var stats ProcessStats
	for _, c := range cands {
		p, err := PostingFromCandidate(c, now)
		if err != nil {
			log.Printf("[process] skipped: %v", err)
			stats.Failed++
			continue
		}

		exists, err := st.Exists(ctx, p.ExternalID)
		if err != nil {
			log.Printf("[process] exists error: %v external_id=%q", err, p.ExternalID)
			stats.Failed++
			continue
		}
		if exists {
			stats.Skipped++
			continue
		}

		if err := st.Insert(ctx, p); err != nil {
			if errors.Is(err, store.ErrConflict) {
				stats.Skipped++
				continue
			}
			log.Printf("[process] insert error: %v external_id=%q", err, p.ExternalID)
			stats.Failed++
			continue
		}

		log.Printf("[process] new posting external_id=%q institution=%q program=%q decision=%q",
			p.ExternalID, p.Institution, p.Program, p.DecisionLabel)
		stats.Added++
		stats.AddedIDs = append(stats.AddedIDs, p.ExternalID)
	}
	return stats
}
