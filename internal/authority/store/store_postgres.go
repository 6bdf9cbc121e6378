package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"healthpass/internal/authority/models"
	"healthpass/pkg/domain"
	"healthpass/pkg/platform/sentinel"
	"healthpass/pkg/platform/tx"
)

const uniqueViolation = "23505"

// Postgres is the durable Store implementation. Mutations already run under
// the registry serializer; row locks in Execute guard against writers outside
// this process.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const applicationColumns = `applicant, name, type, country, region, public_key,
	certificate_ref, contact_info, accreditations, applied_at, processed, rejection_reason`

func (p *Postgres) CreateApplication(ctx context.Context, app *models.Application) error {
	// An unprocessed row blocks re-application; a processed one is replaced.
	res, err := tx.Resolve(ctx, p.db).ExecContext(ctx, `
		INSERT INTO authority_applications (`+applicationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (applicant) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			country = EXCLUDED.country,
			region = EXCLUDED.region,
			public_key = EXCLUDED.public_key,
			certificate_ref = EXCLUDED.certificate_ref,
			contact_info = EXCLUDED.contact_info,
			accreditations = EXCLUDED.accreditations,
			applied_at = EXCLUDED.applied_at,
			processed = FALSE,
			rejection_reason = ''
		WHERE authority_applications.processed`,
		string(app.Applicant), app.Name, string(app.Type), app.Country, app.Region,
		app.PublicKey, app.CertificateReference, app.ContactInfo,
		pq.Array(app.Accreditations), app.AppliedAt, app.Processed, app.RejectionReason)
	if err != nil {
		return fmt.Errorf("create application: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func scanApplication(row interface{ Scan(...any) error }) (*models.Application, error) {
	var (
		app            models.Application
		applicant, typ string
		accreditations pq.StringArray
	)
	err := row.Scan(&applicant, &app.Name, &typ, &app.Country, &app.Region,
		&app.PublicKey, &app.CertificateReference, &app.ContactInfo,
		&accreditations, &app.AppliedAt, &app.Processed, &app.RejectionReason)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	app.Applicant = domain.Identity(applicant)
	app.Type = models.AuthorityType(typ)
	app.Accreditations = accreditations
	return &app, nil
}

func (p *Postgres) FindApplication(ctx context.Context, applicant domain.Identity) (*models.Application, error) {
	row := tx.Resolve(ctx, p.db).QueryRowContext(ctx, `
		SELECT `+applicationColumns+`
		FROM authority_applications WHERE applicant = $1`, string(applicant))
	return scanApplication(row)
}

func (p *Postgres) ExecuteApplication(ctx context.Context, applicant domain.Identity,
	validate func(*models.Application) error,
	mutate func(*models.Application) error,
) error {
	return p.withTx(ctx, func(dbtx *sql.Tx) error {
		row := dbtx.QueryRowContext(ctx, `
			SELECT `+applicationColumns+`
			FROM authority_applications WHERE applicant = $1 FOR UPDATE`, string(applicant))
		app, err := scanApplication(row)
		if err != nil {
			return err
		}

		if err := validate(app); err != nil {
			return err
		}
		if err := mutate(app); err != nil {
			return err
		}

		_, err = dbtx.ExecContext(ctx, `
			UPDATE authority_applications SET
				name = $2, type = $3, country = $4, region = $5, public_key = $6,
				certificate_ref = $7, contact_info = $8, accreditations = $9,
				applied_at = $10, processed = $11, rejection_reason = $12
			WHERE applicant = $1`,
			string(app.Applicant), app.Name, string(app.Type), app.Country, app.Region,
			app.PublicKey, app.CertificateReference, app.ContactInfo,
			pq.Array(app.Accreditations), app.AppliedAt, app.Processed, app.RejectionReason)
		return err
	})
}

func (p *Postgres) ListPendingApplications(ctx context.Context) ([]*models.Application, error) {
	rows, err := tx.Resolve(ctx, p.db).QueryContext(ctx, `
		SELECT `+applicationColumns+`
		FROM authority_applications WHERE NOT processed ORDER BY applied_at`)
	if err != nil {
		return nil, fmt.Errorf("list pending applications: %w", err)
	}
	defer rows.Close()

	var apps []*models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

const authorityColumns = `identity, name, type, country, region, public_key,
	certificate_ref, contact_info, status, registered_at, last_updated,
	accreditations, total_issued, total_revoked`

func (p *Postgres) CreateAuthority(ctx context.Context, a *models.Authority) error {
	_, err := tx.Resolve(ctx, p.db).ExecContext(ctx, `
		INSERT INTO authorities (`+authorityColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		string(a.Identity), a.Name, string(a.Type), a.Country, a.Region,
		a.PublicKey, a.CertificateReference, a.ContactInfo, string(a.Status),
		a.RegisteredAt, a.LastUpdated, pq.Array(a.Accreditations),
		int64(a.TotalRecordsIssued), int64(a.TotalRecordsRevoked))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			if pqErr.Constraint == "authorities_pkey" {
				return sentinel.ErrConflict
			}
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create authority: %w", err)
	}
	return nil
}

func scanAuthority(row interface{ Scan(...any) error }) (*models.Authority, error) {
	var (
		a                     models.Authority
		identity, typ, status string
		accreditations        pq.StringArray
		issued, revoked       int64
	)
	err := row.Scan(&identity, &a.Name, &typ, &a.Country, &a.Region,
		&a.PublicKey, &a.CertificateReference, &a.ContactInfo, &status,
		&a.RegisteredAt, &a.LastUpdated, &accreditations, &issued, &revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	a.Identity = domain.Identity(identity)
	a.Type = models.AuthorityType(typ)
	a.Status = models.Status(status)
	a.Accreditations = accreditations
	a.TotalRecordsIssued = uint64(issued)
	a.TotalRecordsRevoked = uint64(revoked)
	return &a, nil
}

func (p *Postgres) FindAuthority(ctx context.Context, identity domain.Identity) (*models.Authority, error) {
	row := tx.Resolve(ctx, p.db).QueryRowContext(ctx, `
		SELECT `+authorityColumns+` FROM authorities WHERE identity = $1`, string(identity))
	return scanAuthority(row)
}

func (p *Postgres) FindByName(ctx context.Context, name string) (*models.Authority, error) {
	row := tx.Resolve(ctx, p.db).QueryRowContext(ctx, `
		SELECT `+authorityColumns+` FROM authorities WHERE lower(name) = lower($1)`, name)
	return scanAuthority(row)
}

func (p *Postgres) Execute(ctx context.Context, identity domain.Identity,
	validate func(*models.Authority) error,
	mutate func(*models.Authority) error,
) error {
	return p.withTx(ctx, func(dbtx *sql.Tx) error {
		row := dbtx.QueryRowContext(ctx, `
			SELECT `+authorityColumns+` FROM authorities WHERE identity = $1 FOR UPDATE`,
			string(identity))
		a, err := scanAuthority(row)
		if err != nil {
			return err
		}

		if err := validate(a); err != nil {
			return err
		}
		if err := mutate(a); err != nil {
			return err
		}

		_, err = dbtx.ExecContext(ctx, `
			UPDATE authorities SET
				name = $2, type = $3, country = $4, region = $5, public_key = $6,
				certificate_ref = $7, contact_info = $8, status = $9,
				registered_at = $10, last_updated = $11, accreditations = $12,
				total_issued = $13, total_revoked = $14
			WHERE identity = $1`,
			string(a.Identity), a.Name, string(a.Type), a.Country, a.Region,
			a.PublicKey, a.CertificateReference, a.ContactInfo, string(a.Status),
			a.RegisteredAt, a.LastUpdated, pq.Array(a.Accreditations),
			int64(a.TotalRecordsIssued), int64(a.TotalRecordsRevoked))
		return err
	})
}

func (p *Postgres) listAuthorities(ctx context.Context, where string, args ...any) ([]*models.Authority, error) {
	rows, err := tx.Resolve(ctx, p.db).QueryContext(ctx,
		`SELECT `+authorityColumns+` FROM authorities `+where+` ORDER BY registered_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("list authorities: %w", err)
	}
	defer rows.Close()

	var out []*models.Authority
	for rows.Next() {
		a, err := scanAuthority(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (p *Postgres) ListAuthorities(ctx context.Context) ([]*models.Authority, error) {
	return p.listAuthorities(ctx, "")
}

func (p *Postgres) ListByType(ctx context.Context, typ models.AuthorityType) ([]*models.Authority, error) {
	return p.listAuthorities(ctx, "WHERE type = $1", string(typ))
}

func (p *Postgres) ListByCountry(ctx context.Context, country string) ([]*models.Authority, error) {
	return p.listAuthorities(ctx, "WHERE lower(country) = lower($1)", country)
}

func (p *Postgres) CountAuthorities(ctx context.Context) (int, error) {
	var n int
	err := tx.Resolve(ctx, p.db).QueryRowContext(ctx, `SELECT count(*) FROM authorities`).Scan(&n)
	return n, err
}

func (p *Postgres) CountByStatus(ctx context.Context, status models.Status) (int, error) {
	var n int
	err := tx.Resolve(ctx, p.db).QueryRowContext(ctx,
		`SELECT count(*) FROM authorities WHERE status = $1`, string(status)).Scan(&n)
	return n, err
}

func (p *Postgres) NameTaken(ctx context.Context, name string) (bool, error) {
	var taken bool
	err := tx.Resolve(ctx, p.db).QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM authorities WHERE lower(name) = lower($1))
		    OR EXISTS (SELECT 1 FROM authority_applications WHERE lower(name) = lower($1) AND NOT processed)`,
		name).Scan(&taken)
	return taken, err
}

func (p *Postgres) FlagRecordRevoked(ctx context.Context, authority domain.Identity, recordHash domain.Hash) error {
	_, err := tx.Resolve(ctx, p.db).ExecContext(ctx, `
		INSERT INTO authority_revoked_records (authority_identity, record_hash)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		string(authority), string(recordHash))
	return err
}

func (p *Postgres) IsRecordRevoked(ctx context.Context, authority domain.Identity, recordHash domain.Hash) (bool, error) {
	var revoked bool
	err := tx.Resolve(ctx, p.db).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM authority_revoked_records
			WHERE authority_identity = $1 AND record_hash = $2)`,
		string(authority), string(recordHash)).Scan(&revoked)
	return revoked, err
}

// withTx joins the ambient transaction when the serializer opened one, and
// otherwise runs fn in its own transaction. An ambient transaction is never
// committed here; its critical section owns the commit.
func (p *Postgres) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	if ambient, ok := tx.From(ctx); ok {
		return fn(ambient)
	}

	dbtx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(dbtx); err != nil {
		_ = dbtx.Rollback()
		return err
	}
	return dbtx.Commit()
}

var _ Store = (*Postgres)(nil)
