package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/stepwise-app/stepwise/internal/ai"
	"github.com/stepwise-app/stepwise/internal/markdown"
	"github.com/stepwise-app/stepwise/internal/model"
	"github.com/stepwise-app/stepwise/internal/repository"
	"github.com/stepwise-app/stepwise/internal/storage"
	"github.com/stepwise-app/stepwise/internal/validation"
)

type CheckInInput struct {
	Type     string
	Mood     string
	Content  string
	IsPublic bool
	Image    *multipart.FileHeader
}

type CheckInService struct {
	store    *repository.Store
	stats    *StatsService
	ai       *ai.Service
	files    *FileService
	markdown *markdown.Parser
	now      func() time.Time
}

func NewCheckInService(store *repository.Store, stats *StatsService, aiService *ai.Service, files *FileService, parser *markdown.Parser) *CheckInService {
	return &CheckInService{
		store:    store,
		stats:    stats,
		ai:       aiService,
		files:    files,
		markdown: parser,
		now:      time.Now,
	}
}

// Create stores a check-in on an owned goal together with a coaching reply.
// The optional image is validated by content before it is uploaded.
func (s *CheckInService) Create(ctx context.Context, userID, goalID string, in CheckInInput) (*model.CheckIn, error) {
	goal, err := s.store.Goals.ByID(ctx, userID, goalID)
	if err != nil {
		return nil, err
	}

	checkIn := &model.CheckIn{
		ID:       uuid.NewString(),
		GoalID:   goal.ID,
		UserID:   userID,
		Type:     strings.TrimSpace(in.Type),
		Content:  strings.TrimSpace(in.Content),
		IsPublic: in.IsPublic,
	}
	if checkIn.Type == "" {
		checkIn.Type = model.CheckInTypeDaily
	}
	if !model.IsCheckInType(checkIn.Type) {
		return nil, Invalid("invalid check-in type %q", checkIn.Type)
	}
	if mood := strings.TrimSpace(in.Mood); mood != "" {
		if !model.IsMood(mood) {
			return nil, Invalid("invalid mood %q", mood)
		}
		checkIn.Mood = &mood
	}
	if utf8.RuneCountInString(checkIn.Content) > maxTextLength {
		return nil, Invalid("content must be at most %d characters", maxTextLength)
	}

	var image *model.File
	if in.Image != nil {
		mimeType, err := validation.ValidateFile(in.Image, validation.ImageConstraints)
		if err != nil {
			return nil, Invalid("%s", err.Error())
		}
		image, err = s.files.Upload(ctx, userID, model.OwnerTypeCheckIn, checkIn.ID, model.FileTypeCheckInImage, mimeType, in.Image)
		if errors.Is(err, storage.ErrNotConfigured) {
			return nil, Invalid("image uploads are not available")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to upload image: %w", err)
		}
		checkIn.ImagePath = &image.StoragePath
	}

	steps, err := s.store.Steps.ByGoal(ctx, goal.ID)
	if err != nil {
		slog.Warn("failed to load steps for coaching", "error", err, "goal_id", goal.ID)
	}
	progress := model.Progress(steps)

	req := ai.CoachRequest{
		GoalTitle:      goal.Title,
		Type:           checkIn.Type,
		Content:        checkIn.Content,
		CompletedSteps: progress.CompletedSteps,
		TotalSteps:     progress.TotalSteps,
	}
	if checkIn.Mood != nil {
		req.Mood = *checkIn.Mood
	}
	checkIn.AIResponse, _ = s.ai.Coach(ctx, req)
	checkIn.CreatedAt = s.now().UTC()

	err = s.store.CheckIns.Create(ctx, checkIn)
	if err != nil {
		if image != nil {
			if derr := s.files.Delete(ctx, image); derr != nil {
				slog.Warn("failed to clean up check-in image", "error", derr, "file_id", image.ID)
			}
		}
		return nil, fmt.Errorf("failed to create check-in: %w", err)
	}

	_, err = s.stats.RecordActivity(ctx, userID, model.ActivityGeneric)
	if err != nil {
		slog.Error("failed to record check-in activity", "error", err, "user_id", userID)
	}

	s.decorate(ctx, checkIn)
	return checkIn, nil
}

// List returns an owned goal's check-ins, newest first.
func (s *CheckInService) List(ctx context.Context, userID, goalID string) ([]*model.CheckIn, error) {
	goal, err := s.store.Goals.ByID(ctx, userID, goalID)
	if err != nil {
		return nil, err
	}

	checkIns, err := s.store.CheckIns.ByGoal(ctx, goal.ID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list check-ins: %w", err)
	}
	for _, c := range checkIns {
		s.decorate(ctx, c)
	}
	if checkIns == nil {
		checkIns = []*model.CheckIn{}
	}
	return checkIns, nil
}

func (s *CheckInService) decorate(ctx context.Context, c *model.CheckIn) {
	c.ContentHTML = s.markdown.RenderString(c.Content)
	if c.ImagePath != nil {
		c.ImageURL = s.files.URL(ctx, *c.ImagePath)
	}
}
