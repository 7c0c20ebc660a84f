package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"character-chat/internal/models"
)

// encodeList marshals a string slice for storage, never returning null.
func encodeList(values []string) string {
	if values == nil {
		values = []string{}
	}
	data, _ := json.Marshal(values)
	return string(data)
}

func decodeList(raw string) []string {
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil
	}
	if len(values) == 0 {
		return nil
	}
	return values
}

// CreatePersonality inserts a new personality and mints its ID.
func (d *DB) CreatePersonality(p models.Personality) (*models.Personality, error) {
	return WithLockResult(d, func() (*models.Personality, error) {
		p.ID = uuid.NewString()
		p.CreatedAt = time.Now()

		_, err := d.db.Exec(
			`INSERT INTO personalities (id, name, avatar, personality, traits, description, avatar_gallery, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Name, p.Avatar, p.Personality,
			encodeList(p.Traits), p.Description, encodeList(p.AvatarGallery), p.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		return &p, nil
	})
}

// GetPersonality retrieves a personality by ID.
func (d *DB) GetPersonality(id string) (*models.Personality, error) {
	return WithLockResult(d, func() (*models.Personality, error) {
		row := d.db.QueryRow(
			`SELECT id, name, avatar, personality, traits, description, avatar_gallery, created_at
			 FROM personalities WHERE id = ?`, id,
		)
		return scanPersonality(row)
	})
}

// GetAllPersonalities retrieves all personalities, newest first.
func (d *DB) GetAllPersonalities() ([]models.Personality, error) {
	return WithLockResult(d, func() ([]models.Personality, error) {
		rows, err := d.db.Query(
			`SELECT id, name, avatar, personality, traits, description, avatar_gallery, created_at
			 FROM personalities ORDER BY created_at DESC`,
		)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var personalities []models.Personality
		for rows.Next() {
			p, err := scanPersonality(rows)
			if err != nil {
				return nil, err
			}
			personalities = append(personalities, *p)
		}

		return personalities, rows.Err()
	})
}

// GetPersonalities retrieves the personalities with the given IDs, preserving
// the requested order. Unknown IDs are skipped.
func (d *DB) GetPersonalities(ids []string) ([]models.Personality, error) {
	byID := make(map[string]models.Personality)

	all, err := d.GetAllPersonalities()
	if err != nil {
		return nil, err
	}
	for _, p := range all {
		byID[p.ID] = p
	}

	var result []models.Personality
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			result = append(result, p)
		}
	}
	return result, nil
}

// UpdatePersonality replaces a personality record wholesale. The ID and
// creation time are immutable.
func (d *DB) UpdatePersonality(p models.Personality) (*models.Personality, error) {
	return WithLockResult(d, func() (*models.Personality, error) {
		_, err := d.db.Exec(
			`UPDATE personalities
			 SET name = ?, avatar = ?, personality = ?, traits = ?, description = ?, avatar_gallery = ?
			 WHERE id = ?`,
			p.Name, p.Avatar, p.Personality,
			encodeList(p.Traits), p.Description, encodeList(p.AvatarGallery), p.ID,
		)
		if err != nil {
			return nil, err
		}

		row := d.db.QueryRow(
			`SELECT id, name, avatar, personality, traits, description, avatar_gallery, created_at
			 FROM personalities WHERE id = ?`, p.ID,
		)
		return scanPersonality(row)
	})
}

// DeletePersonality deletes a personality by ID.
func (d *DB) DeletePersonality(id string) error {
	return d.WithLock(func() error {
		_, err := d.db.Exec(`DELETE FROM personalities WHERE id = ?`, id)
		return err
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPersonality(row rowScanner) (*models.Personality, error) {
	var p models.Personality
	var traits, gallery string

	err := row.Scan(&p.ID, &p.Name, &p.Avatar, &p.Personality, &traits, &p.Description, &gallery, &p.CreatedAt)
	if err != nil {
		return nil, err
	}

	p.Traits = decodeList(traits)
	p.AvatarGallery = decodeList(gallery)
	return &p, nil
}
