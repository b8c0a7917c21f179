package schema

// Custom string types for type safety.
type (
	// QuestionType represents the kind of answer a question accepts.
	QuestionType string

	// Grade represents a letter grade derived from a composite score.
	Grade string

	// Tier represents the priority bucket derived from a grade.
	Tier string

	// Role represents the role an identity holds in the organization.
	Role string

	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for evaluation storage.
	DatabaseBackend string
)

// All question types supported.
const (
	FreeTextQuestion     QuestionType = "free_text"
	SingleChoiceQuestion QuestionType = "single_choice"
	MultiChoiceQuestion  QuestionType = "multi_choice"
	RatingQuestion       QuestionType = "rating"
)

// All letter grades supported, best first.
const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeE Grade = "E"
)

// All priority tiers supported, most pressing first.
const (
	UrgentTier Tier = "urgent"
	WatchTier  Tier = "watch"
	StableTier Tier = "stable"
)

// Well-known roles.
const (
	AdministratorRole Role = "administrator"
	EvaluatorRole     Role = "evaluator"
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv"
	TextOut    OutputMode = "text" // default
	JSONOut    OutputMode = "json"
	ParquetOut OutputMode = "parquet"
)

// All storage backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
)

// AllFormsKey is the aggregate form key for the all-forms composite.
const AllFormsKey = "*"

// RedactedNotice is the message shown to callers who may not view scores.
const RedactedNotice = "submission recorded"

// UnavailableNotice is shown when a caller asks for a submission that is not theirs.
const UnavailableNotice = "not available"

// AllGrades lists the grades from best to worst.
var AllGrades = []Grade{GradeA, GradeB, GradeC, GradeD, GradeE}

// AllTiers lists the tiers in ranking order.
var AllTiers = []Tier{UrgentTier, WatchTier, StableTier}

// ValidQuestionTypes lists all valid question types.
var ValidQuestionTypes = map[QuestionType]struct{}{
	FreeTextQuestion:     {},
	SingleChoiceQuestion: {},
	MultiChoiceQuestion:  {},
	RatingQuestion:       {},
}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:     {},
	TextOut:    {},
	JSONOut:    {},
	ParquetOut: {},
}

// ValidDatabaseBackends lists all valid storage backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
}

// ValidGrades lists all valid grades.
var ValidGrades = map[Grade]struct{}{
	GradeA: {},
	GradeB: {},
	GradeC: {},
	GradeD: {},
	GradeE: {},
}

// ValidTiers lists all valid tiers.
var ValidTiers = map[Tier]struct{}{
	UrgentTier: {},
	WatchTier:  {},
	StableTier: {},
}

// TierOrder returns the ranking position of a tier; unknown tiers sort last.
func TierOrder(t Tier) int {
	for i, tier := range AllTiers {
		if tier == t {
			return i
		}
	}
	return len(AllTiers)
}

// IsScorable reports whether a question type can contribute to the numeric score.
func (qt QuestionType) IsScorable() bool {
	return qt == SingleChoiceQuestion || qt == MultiChoiceQuestion || qt == RatingQuestion
}
