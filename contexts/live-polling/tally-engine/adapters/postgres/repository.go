package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"pollcast/contexts/live-polling/tally-engine/domain/entities"
	domainerrors "pollcast/contexts/live-polling/tally-engine/domain/errors"
	"pollcast/contexts/live-polling/tally-engine/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository stores the tally in two tables: one counter row per option and
// one row per voter identity. The voter primary key enforces one vote per
// identity across every process sharing the database.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema creates the tally tables and seeds a zero counter for every
// option.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&optionCountModel{}, &voterModel{}); err != nil {
		return r.logError("tally_repo_migrate_failed", err)
	}
	now := time.Now().UTC()
	rows := make([]optionCountModel, 0, len(entities.Options()))
	for _, option := range entities.Options() {
		rows = append(rows, optionCountModel{Option: string(option), Votes: 0, UpdatedAt: now})
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
		return r.logError("tally_repo_seed_failed", err)
	}
	return nil
}

func (r *Repository) LoadTally(ctx context.Context) (entities.Tally, error) {
	tally := entities.NewTally()

	var counts []optionCountModel
	if err := r.db.WithContext(ctx).Find(&counts).Error; err != nil {
		if isUndefinedTable(err) {
			r.logger.Warn("tally tables missing, starting from an empty tally",
				"event", "tally_repo_schema_missing",
				"module", "live-polling/tally-engine",
				"layer", "adapter",
			)
			return tally, nil
		}
		return entities.Tally{}, r.logError("tally_repo_load_counts_failed", err)
	}
	for _, row := range counts {
		tally.Counts[entities.Option(row.Option)] = row.Votes
		tally.Total += row.Votes
	}

	var voters []voterModel
	if err := r.db.WithContext(ctx).Find(&voters).Error; err != nil {
		if isUndefinedTable(err) {
			return tally, nil
		}
		return entities.Tally{}, r.logError("tally_repo_load_voters_failed", err)
	}
	for _, row := range voters {
		tally.Voters[row.Identity] = entities.Option(row.Option)
	}
	return tally, nil
}

// RecordVote inserts the voter row and bumps the option counter in one
// transaction.
func (r *Repository) RecordVote(ctx context.Context, identity string, option entities.Option, votedAt time.Time) error {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return domainerrors.ErrInvalidIdentity
	}
	if !option.Valid() {
		return domainerrors.ErrUnknownOption
	}
	votedAt = votedAt.UTC()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		voter := voterModel{Identity: identity, Option: string(option), VotedAt: votedAt}
		if err := tx.Create(&voter).Error; err != nil {
			return err
		}
		counter := optionCountModel{Option: string(option), Votes: 1, UpdatedAt: votedAt}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "option"}},
			DoUpdates: clause.Assignments(map[string]any{
				"votes":      gorm.Expr("poll_option_counts.votes + 1"),
				"updated_at": votedAt,
			}),
		}).Create(&counter).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrAlreadyVoted
		}
		return r.logError("tally_repo_record_vote_failed", err,
			"identity", identity,
			"option", string(option),
		)
	}
	return nil
}

func (r *Repository) ResetTally(ctx context.Context) error {
	now := time.Now().UTC()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&voterModel{}).Error; err != nil {
			return err
		}
		return tx.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Model(&optionCountModel{}).
			Updates(map[string]any{"votes": 0, "updated_at": now}).
			Error
	})
	if err != nil {
		return r.logError("tally_repo_reset_failed", err)
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "live-polling/tally-engine",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("tally repository operation failed", fields...)
	return err
}

type optionCountModel struct {
	Option    string    `gorm:"column:option;primaryKey"`
	Votes     int       `gorm:"column:votes;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (optionCountModel) TableName() string {
	return "poll_option_counts"
}

type voterModel struct {
	Identity string    `gorm:"column:identity;primaryKey"`
	Option   string    `gorm:"column:option;not null"`
	VotedAt  time.Time `gorm:"column:voted_at"`
}

func (voterModel) TableName() string {
	return "poll_voters"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}

var _ ports.TallyRepository = (*Repository)(nil)
