package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"healthpass/internal/proof/models"
	"healthpass/pkg/domain"
	"healthpass/pkg/platform/sentinel"
	"healthpass/pkg/platform/tx"
)

const uniqueViolation = "23505"

// Postgres is the durable Store implementation.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const proofColumns = `proof_hash, health_record_hash, issuing_authority, proof_data,
	generated_at, expires_at, revoked, verification_count`

func (p *Postgres) Create(ctx context.Context, proof *models.ZKProof) error {
	var expiresAt sql.NullTime
	if !proof.ExpiresAt.IsZero() {
		expiresAt = sql.NullTime{Time: proof.ExpiresAt, Valid: true}
	}

	_, err := tx.Resolve(ctx, p.db).ExecContext(ctx, `
		INSERT INTO proofs (`+proofColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(proof.ProofHash), string(proof.HealthRecordHash),
		string(proof.IssuingAuthority), proof.ProofData,
		proof.GeneratedAt, expiresAt, proof.Revoked, int64(proof.VerificationCount))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create proof: %w", err)
	}
	return nil
}

func scanProof(row interface{ Scan(...any) error }) (*models.ZKProof, error) {
	var (
		proof             models.ZKProof
		proofHash, record string
		authority         string
		expiresAt         sql.NullTime
		verificationCount int64
	)
	err := row.Scan(&proofHash, &record, &authority, &proof.ProofData,
		&proof.GeneratedAt, &expiresAt, &proof.Revoked, &verificationCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	proof.ProofHash = domain.Hash(proofHash)
	proof.HealthRecordHash = domain.Hash(record)
	proof.IssuingAuthority = domain.Identity(authority)
	if expiresAt.Valid {
		proof.ExpiresAt = expiresAt.Time
	}
	proof.VerificationCount = uint64(verificationCount)
	return &proof, nil
}

func (p *Postgres) Find(ctx context.Context, proofHash domain.Hash) (*models.ZKProof, error) {
	row := tx.Resolve(ctx, p.db).QueryRowContext(ctx,
		`SELECT `+proofColumns+` FROM proofs WHERE proof_hash = $1`, string(proofHash))
	return scanProof(row)
}

func (p *Postgres) Execute(ctx context.Context, proofHash domain.Hash,
	validate func(*models.ZKProof) error,
	mutate func(*models.ZKProof) error,
) error {
	return p.withTx(ctx, func(dbtx *sql.Tx) error {
		row := dbtx.QueryRowContext(ctx,
			`SELECT `+proofColumns+` FROM proofs WHERE proof_hash = $1 FOR UPDATE`,
			string(proofHash))
		proof, err := scanProof(row)
		if err != nil {
			return err
		}

		if err := validate(proof); err != nil {
			return err
		}
		if err := mutate(proof); err != nil {
			return err
		}

		var expiresAt sql.NullTime
		if !proof.ExpiresAt.IsZero() {
			expiresAt = sql.NullTime{Time: proof.ExpiresAt, Valid: true}
		}
		_, err = dbtx.ExecContext(ctx, `
			UPDATE proofs SET
				health_record_hash = $2, issuing_authority = $3, proof_data = $4,
				generated_at = $5, expires_at = $6, revoked = $7, verification_count = $8
			WHERE proof_hash = $1`,
			string(proof.ProofHash), string(proof.HealthRecordHash),
			string(proof.IssuingAuthority), proof.ProofData,
			proof.GeneratedAt, expiresAt, proof.Revoked, int64(proof.VerificationCount))
		return err
	})
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

func (p *Postgres) ListHashes(ctx context.Context) ([]domain.Hash, error) {
	rows, err := tx.Resolve(ctx, p.db).QueryContext(ctx, `SELECT proof_hash FROM proofs ORDER BY generated_at`)
	if err != nil {
		return nil, fmt.Errorf("list proof hashes: %w", err)
	}
	defer rows.Close()

	var hashes []domain.Hash
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, err
		}
		hashes = append(hashes, domain.Hash(hash))
	}
	return hashes, rows.Err()
}

func (p *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	err := tx.Resolve(ctx, p.db).QueryRowContext(ctx, `SELECT count(*) FROM proofs`).Scan(&n)
	return n, err
}

func (p *Postgres) AppendVerification(ctx context.Context, proofHash domain.Hash, event models.VerificationEvent) error {
	_, err := tx.Resolve(ctx, p.db).ExecContext(ctx, `
		INSERT INTO verifications (proof_hash, verifier, is_valid, context, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		string(proofHash), string(event.Verifier), event.Valid, event.Context, event.Timestamp)
	return err
}

func (p *Postgres) Verifications(ctx context.Context, proofHash domain.Hash, offset, limit int) ([]models.VerificationEvent, error) {
	rows, err := tx.Resolve(ctx, p.db).QueryContext(ctx, `
		SELECT verifier, is_valid, context, created_at
		FROM verifications WHERE proof_hash = $1
		ORDER BY id OFFSET $2 LIMIT $3`,
		string(proofHash), offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list verifications: %w", err)
	}
	defer rows.Close()

	var events []models.VerificationEvent
	for rows.Next() {
		var (
			event    models.VerificationEvent
			verifier string
			ts       time.Time
		)
		if err := rows.Scan(&verifier, &event.Valid, &event.Context, &ts); err != nil {
			return nil, err
		}
		event.Verifier = domain.Identity(verifier)
		event.Timestamp = ts
		events = append(events, event)
	}
	return events, rows.Err()
}

func (p *Postgres) CountVerifications(ctx context.Context) (uint64, error) {
	var n int64
	err := tx.Resolve(ctx, p.db).QueryRowContext(ctx, `SELECT count(*) FROM verifications`).Scan(&n)
	return uint64(n), err
}

var _ Store = (*Postgres)(nil)
