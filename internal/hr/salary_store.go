package hr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/valinor-ai/hrgate/internal/access"
	"github.com/valinor-ai/hrgate/internal/platform/database"
)

type SalaryStore struct{}

func NewSalaryStore() *SalaryStore {
	return &SalaryStore{}
}

// amount is NUMERIC(12,2); it crosses the wire as float8.
const salaryColumns = `id, employee_id, amount::float8, currency, effective_date, sensitivity_level, created_at, updated_at`

func scanSalary(row pgx.Row) (*SalaryRecord, error) {
	var (
		s     SalaryRecord
		level string
	)
	err := row.Scan(&s.ID, &s.EmployeeID, &s.Amount, &s.Currency, &s.EffectiveDate.Time, &level, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if s.SensitivityLevel, err = parseLevel(level); err != nil {
		return nil, err
	}
	return &s, nil
}

// SalaryInput carries the writable salary fields. Currency defaults to ETB.
type SalaryInput struct {
	EmployeeID       int64        `json:"employee_id"`
	Amount           float64      `json:"amount"`
	Currency         string       `json:"currency,omitempty"`
	EffectiveDate    Date         `json:"effective_date"`
	SensitivityLevel access.Level `json:"sensitivity_level,omitempty"`
}

func (in *SalaryInput) normalize() error {
	if in.Amount <= 0 {
		return ErrInvalidAmount
	}
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Currency == "" {
		in.Currency = "ETB"
	}
	if in.EffectiveDate.IsZero() {
		return ErrEffectiveDateReq
	}
	return nil
}

func (s *SalaryStore) Create(ctx context.Context, q database.Querier, in SalaryInput) (*SalaryRecord, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	rec, err := scanSalary(q.QueryRow(ctx,
		`INSERT INTO salary_records (employee_id, amount, currency, effective_date, sensitivity_level)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+salaryColumns,
		in.EmployeeID, in.Amount, in.Currency, in.EffectiveDate.Time,
		levelOr(in.SensitivityLevel, access.LevelConfidential).String(),
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: employee", ErrInvalidReference)
		}
		return nil, fmt.Errorf("creating salary record: %w", err)
	}
	return rec, nil
}

func (s *SalaryStore) GetByID(ctx context.Context, q database.Querier, id int64) (*SalaryRecord, error) {
	rec, err := scanSalary(q.QueryRow(ctx,
		`SELECT `+salaryColumns+` FROM salary_records WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSalaryNotFound
		}
		return nil, fmt.Errorf("getting salary record: %w", err)
	}
	return rec, nil
}

// List returns salary records. A non-nil departmentID keeps only employees
// whose profile is in that department.
func (s *SalaryStore) List(ctx context.Context, q database.Querier, departmentID *int64) ([]SalaryRecord, error) {
	rows, err := q.Query(ctx,
		`SELECT `+prefixed("s", salaryColumns)+`
		 FROM salary_records s
		 LEFT JOIN employee_profiles p ON p.user_id = s.employee_id
		 WHERE $1::bigint IS NULL OR p.department_id = $1
		 ORDER BY s.id`,
		departmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing salary records: %w", err)
	}
	defer rows.Close()

	records := []SalaryRecord{}
	for rows.Next() {
		rec, err := scanSalary(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning salary record: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// Update changes amount, currency and effective date. The employee never changes.
func (s *SalaryStore) Update(ctx context.Context, q database.Querier, id int64, in SalaryInput) (*SalaryRecord, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	var level *string
	if in.SensitivityLevel != 0 {
		v := in.SensitivityLevel.String()
		level = &v
	}

	rec, err := scanSalary(q.QueryRow(ctx,
		`UPDATE salary_records
		 SET amount = $2, currency = $3, effective_date = $4,
		     sensitivity_level = COALESCE($5, sensitivity_level), updated_at = now()
		 WHERE id = $1
		 RETURNING `+salaryColumns,
		id, in.Amount, in.Currency, in.EffectiveDate.Time, level,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSalaryNotFound
		}
		return nil, fmt.Errorf("updating salary record: %w", err)
	}
	return rec, nil
}

func (s *SalaryStore) Delete(ctx context.Context, q database.Querier, id int64) error {
	tag, err := q.Exec(ctx, `DELETE FROM salary_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting salary record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSalaryNotFound
	}
	return nil
}

// prefixed qualifies each column in a comma separated list with alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
