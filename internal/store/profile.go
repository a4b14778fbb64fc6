package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayusman/vigil/internal/config"
)

// Profile is a named set of thresholds that sessions can opt into.
type Profile struct {
	ID         string
	Name       string
	Thresholds config.Thresholds
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ProfileRepository provides CRUD operations for profiles.
type ProfileRepository struct {
	db *sql.DB
}

// Profiles returns the profile repository for this store.
func (s *Store) Profiles() *ProfileRepository {
	return &ProfileRepository{db: s.db}
}

const profileColumns = `id, name, eye_closed, mouth_aspect_ratio, mouth_open, head_rotation, head_tilt,
	head_tie_break, eyes_closed_ms, phone_detection_ms, danger_ms, yawn_min_gap_ms,
	yawn_reset_window_ms, yawn_policy, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (*Profile, error) {
	p := &Profile{}
	var (
		tieBreak, policy                               string
		eyesClosed, phone, danger, minGap, resetWindow int64
	)

	err := row.Scan(
		&p.ID, &p.Name,
		&p.Thresholds.EyeClosed, &p.Thresholds.MouthAspectRatio, &p.Thresholds.MouthOpen,
		&p.Thresholds.HeadRotation, &p.Thresholds.HeadTilt, &tieBreak,
		&eyesClosed, &phone, &danger, &minGap, &resetWindow, &policy,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Thresholds.HeadTieBreak = config.TieBreak(tieBreak)
	p.Thresholds.YawnPolicy = config.YawnPolicy(policy)
	p.Thresholds.EyesClosedTime = time.Duration(eyesClosed) * time.Millisecond
	p.Thresholds.PhoneDetection = time.Duration(phone) * time.Millisecond
	p.Thresholds.Danger = time.Duration(danger) * time.Millisecond
	p.Thresholds.YawnMinGap = time.Duration(minGap) * time.Millisecond
	p.Thresholds.YawnResetWindow = time.Duration(resetWindow) * time.Millisecond
	return p, nil
}

// Create validates and inserts a new profile.
func (r *ProfileRepository) Create(p *Profile) error {
	if err := validateProfile(p); err != nil {
		return err
	}

	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	th := p.Thresholds
	_, err := r.db.Exec(
		`INSERT INTO profiles (`+profileColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, th.EyeClosed, th.MouthAspectRatio, th.MouthOpen, th.HeadRotation, th.HeadTilt,
		string(th.HeadTieBreak), th.EyesClosedTime.Milliseconds(), th.PhoneDetection.Milliseconds(),
		th.Danger.Milliseconds(), th.YawnMinGap.Milliseconds(), th.YawnResetWindow.Milliseconds(),
		string(th.YawnPolicy), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return uniqueErr(err, p.Name)
	}

	return nil
}

// GetByID retrieves a profile by its ID.
func (r *ProfileRepository) GetByID(id string) (*Profile, error) {
	p, err := scanProfile(r.db.QueryRow(
		`SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// GetByName retrieves a profile by its name.
func (r *ProfileRepository) GetByName(name string) (*Profile, error) {
	p, err := scanProfile(r.db.QueryRow(
		`SELECT `+profileColumns+` FROM profiles WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// List retrieves all profiles ordered by name.
func (r *ProfileRepository) List() ([]*Profile, error) {
	rows, err := r.db.Query(`SELECT ` + profileColumns + ` FROM profiles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return profiles, nil
}

// Update validates and updates an existing profile.
func (r *ProfileRepository) Update(p *Profile) error {
	if err := validateProfile(p); err != nil {
		return err
	}

	p.UpdatedAt = time.Now()

	th := p.Thresholds
	result, err := r.db.Exec(
		`UPDATE profiles SET name = ?, eye_closed = ?, mouth_aspect_ratio = ?, mouth_open = ?,
			head_rotation = ?, head_tilt = ?, head_tie_break = ?, eyes_closed_ms = ?,
			phone_detection_ms = ?, danger_ms = ?, yawn_min_gap_ms = ?, yawn_reset_window_ms = ?,
			yawn_policy = ?, updated_at = ?
		 WHERE id = ?`,
		p.Name, th.EyeClosed, th.MouthAspectRatio, th.MouthOpen, th.HeadRotation, th.HeadTilt,
		string(th.HeadTieBreak), th.EyesClosedTime.Milliseconds(), th.PhoneDetection.Milliseconds(),
		th.Danger.Milliseconds(), th.YawnMinGap.Milliseconds(), th.YawnResetWindow.Milliseconds(),
		string(th.YawnPolicy), p.UpdatedAt, p.ID,
	)
	if err != nil {
		return uniqueErr(err, p.Name)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a profile by its ID.
func (r *ProfileRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func validateProfile(p *Profile) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: profile name is required", config.ErrInvalidConfiguration)
	}
	return p.Thresholds.Validate()
}

func uniqueErr(err error, name string) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: profile %q", ErrDuplicate, name)
	}
	return err
}
