package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"vidpress/internal/domain"
	"vidpress/internal/port"
)

type AdmissionConfig struct {
	QuotaPerUser     int
	MaxFileSize      int64
	SupportedFormats []string
}

// AdmissionService gates job creation: it validates the input, checks the
// per-user quota against the full requested batch, and fans "all" out into
// one job per configured profile.
type AdmissionService struct {
	jobs         port.JobStore
	profiles     map[string]domain.Profile
	profileOrder []string
	cfg          AdmissionConfig
	log          zerolog.Logger
}

func NewAdmissionService(jobs port.JobStore, profiles map[string]domain.Profile, profileOrder []string, cfg AdmissionConfig, log zerolog.Logger) *AdmissionService {
	return &AdmissionService{
		jobs:         jobs,
		profiles:     profiles,
		profileOrder: profileOrder,
		cfg:          cfg,
		log:          log,
	}
}

// Admit creates one pending job per requested profile, or none at all. The
// quota considers the whole batch: either every profile fits or the request
// is rejected with ErrQuotaExceeded before any insert.
func (s *AdmissionService) Admit(ctx context.Context, ownerID int64, sourceRef, filename string, size int64, requestedProfile string) ([]*domain.Job, error) {
	if size > s.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: %s (limit %s)", domain.ErrFileTooLarge, domain.FormatBytes(size), domain.FormatBytes(s.cfg.MaxFileSize))
	}
	if err := s.checkFormat(filename); err != nil {
		return nil, err
	}

	profiles, err := s.resolveProfiles(requestedProfile)
	if err != nil {
		return nil, err
	}

	active, err := s.jobs.CountActiveForOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("count active jobs: %w", err)
	}
	if active+len(profiles) > s.cfg.QuotaPerUser {
		return nil, fmt.Errorf("%w: %d active, %d requested, limit %d",
			domain.ErrQuotaExceeded, active, len(profiles), s.cfg.QuotaPerUser)
	}

	created := make([]*domain.Job, 0, len(profiles))
	for _, name := range profiles {
		job, err := s.jobs.Insert(ctx, ownerID, sourceRef, filename, size, name)
		if err != nil {
			// Storage fault mid-batch: terminate what was created so the
			// batch never admits partially.
			for _, j := range created {
				_ = s.jobs.Fail(ctx, j.ID, "admission aborted: storage fault during batch insert")
			}
			return nil, fmt.Errorf("insert job: %w", err)
		}
		created = append(created, job)
	}

	s.log.Info().
		Int64("owner", ownerID).
		Str("profile", requestedProfile).
		Int("jobs", len(created)).
		Msg("admitted")
	return created, nil
}

func (s *AdmissionService) resolveProfiles(requested string) ([]string, error) {
	if requested == domain.ProfileAll {
		return s.profileOrder, nil
	}
	if _, ok := s.profiles[requested]; !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProfile, requested)
	}
	return []string{requested}, nil
}

func (s *AdmissionService) checkFormat(filename string) error {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	for _, supported := range s.cfg.SupportedFormats {
		if ext == supported {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, ext)
}
