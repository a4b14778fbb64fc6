package store

import (
	"errors"
	"testing"
)

func TestSettingsRepository(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()

	if _, err := repo.Get(SettingDefaultProfile); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}

	if err := repo.Set(SettingDefaultProfile, "night"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := repo.Set(SettingDefaultProfile, "day"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}

	got, err := repo.Get(SettingDefaultProfile)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "day" {
		t.Errorf("Get() = %q, want day", got)
	}

	if err := repo.Set("theme", "dark"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	all, err := repo.All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(all) != 2 || all["theme"] != "dark" || all[SettingDefaultProfile] != "day" {
		t.Errorf("All() = %v", all)
	}

	if err := repo.Delete("theme"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete("theme"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() twice error = %v, want ErrNotFound", err)
	}
}
