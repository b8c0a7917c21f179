// Package parquet provides data structures and functions for exporting moze
// rankings and submissions to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"os"
	"time"

	"github.com/huangsam/moze/schema"
	"github.com/parquet-go/parquet-go"
)

// RankingRecord represents one ranked unit of a prioritization report.
type RankingRecord struct {
	// Rank is the 1-based position in the report
	Rank int32 `parquet:"rank,snappy"`

	// UnitID identifies the evaluated unit
	UnitID string `parquet:"unit_id,snappy"`

	// UnitName is the display name from the unit directory (nullable)
	UnitName *string `parquet:"unit_name,optional,snappy"`

	// FormKey is the form ID or "*" for the all-forms composite
	FormKey string `parquet:"form_key,snappy"`

	// MeanScore is the mean composite score in [0,1]
	MeanScore float64 `parquet:"mean_score,snappy"`

	// SubmissionCount is the number of qualifying submissions
	SubmissionCount int32 `parquet:"submission_count,snappy"`

	// Grade is the letter grade of the mean score
	Grade string `parquet:"grade,snappy"`

	// Tier is the priority tier of the grade
	Tier string `parquet:"tier,snappy"`

	// ComputedAt is when the aggregate was last recomputed
	ComputedAt time.Time `parquet:"computed_at,snappy"`
}

// SubmissionRecord represents one stored submission.
// Score and grade are null for unscored or redacted submissions.
type SubmissionRecord struct {
	SubmissionID string    `parquet:"submission_id,snappy"`
	FormID       string    `parquet:"form_id,snappy"`
	EvaluatorID  string    `parquet:"evaluator_id,snappy"`
	UnitID       string    `parquet:"unit_id,snappy"`
	SubmittedAt  time.Time `parquet:"submitted_at,snappy"`
	Score        *float64  `parquet:"score,optional,snappy"`
	Grade        *string   `parquet:"grade,optional,snappy"`
	Voided       bool      `parquet:"voided,snappy"`
	Override     bool      `parquet:"override,snappy"`
	AnswerCount  int32     `parquet:"answer_count,snappy"`
}

// writeParquet writes records to a new Parquet file, inferring the schema from T's struct tags.
func writeParquet[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// WriteRankingParquet writes ranking records to a Parquet file.
func WriteRankingParquet(data []RankingRecord, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteSubmissionsParquet writes submission records to a Parquet file.
func WriteSubmissionsParquet(data []SubmissionRecord, outputPath string) error {
	return writeParquet(data, outputPath)
}

// ConvertRanking converts a ranked report for Parquet export.
func ConvertRanking(report *schema.RankedReport) []RankingRecord {
	result := make([]RankingRecord, 0, report.Len())
	for _, entry := range report.All() {
		agg := entry.Aggregate
		rec := RankingRecord{
			Rank:            int32(entry.Rank),
			UnitID:          agg.UnitID,
			FormKey:         agg.FormKey,
			MeanScore:       agg.MeanScore,
			SubmissionCount: int32(agg.SubmissionCount),
			Grade:           string(agg.Grade),
			Tier:            string(agg.Tier),
			ComputedAt:      agg.ComputedAt,
		}
		if entry.Unit.Name != "" {
			name := entry.Unit.Name
			rec.UnitName = &name
		}
		result = append(result, rec)
	}
	return result
}

// ConvertSubmissions converts submissions for Parquet export.
func ConvertSubmissions(subs []schema.Submission) []SubmissionRecord {
	result := make([]SubmissionRecord, len(subs))
	for i, sub := range subs {
		result[i] = SubmissionRecord{
			SubmissionID: sub.ID,
			FormID:       sub.FormID,
			EvaluatorID:  sub.EvaluatorID,
			UnitID:       sub.UnitID,
			SubmittedAt:  sub.SubmittedAt,
			Voided:       sub.Voided,
			Override:     sub.Override,
			AnswerCount:  int32(len(sub.Answers)),
		}
		if sub.Scored && sub.Score != nil {
			score := *sub.Score
			grade := string(sub.Grade)
			result[i].Score = &score
			result[i].Grade = &grade
		}
	}
	return result
}
