package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/classroom-engagement-api/internal/dto"
	"github.com/noah-isme/classroom-engagement-api/internal/models"
	appErrors "github.com/noah-isme/classroom-engagement-api/pkg/errors"
	"github.com/noah-isme/classroom-engagement-api/pkg/export"
)

type teacherLeaderboardSource interface {
	ForTeacher(ctx context.Context, claims *models.JWTClaims, courseID string) (*dto.Leaderboard, error)
}

type tableRenderer interface {
	ContentType() string
	Extension() string
	Render(table export.Table) ([]byte, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders leaderboards as downloadable files.
type ExportService struct {
	leaderboards teacherLeaderboardSource
	renderers    map[string]tableRenderer
	logger       *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to the package defaults.
func NewExportService(leaderboards teacherLeaderboardSource, csv, pdf tableRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		leaderboards: leaderboards,
		renderers:    map[string]tableRenderer{"csv": csv, "pdf": pdf},
		logger:       logger,
	}
}

// Leaderboard renders a course leaderboard in the requested format (csv when empty).
func (s *ExportService) Leaderboard(ctx context.Context, claims *models.JWTClaims, courseID, format string) (*ExportFile, error) {
	if format == "" {
		format = "csv"
	}
	renderer, ok := s.renderers[strings.ToLower(format)]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	board, err := s.leaderboards.ForTeacher(ctx, claims, courseID)
	if err != nil {
		return nil, err
	}

	body, err := renderer.Render(leaderboardTable(board))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Info("leaderboard exported",
		zap.String("course_id", courseID),
		zap.String("format", renderer.Extension()),
		zap.Int("bytes", len(body)),
	)
	return &ExportFile{
		Filename:    fmt.Sprintf("leaderboard_%s_%s.%s", sanitizeFilename(board.CourseName), board.GeneratedAt.Format("20060102"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

func leaderboardTable(board *dto.Leaderboard) export.Table {
	table := export.Table{
		Title:   "Leaderboard: " + board.CourseName,
		Headers: []string{"Student", "Rank", "Score", "Attended", "Held", "Attendance %", "Participation"},
		Rows:    make([][]string, 0, len(board.Entries)),
	}
	if board.Section != nil && *board.Section != "" {
		table.Subtitle = "Section " + *board.Section
	}
	for _, e := range board.Entries {
		table.Rows = append(table.Rows, []string{
			e.StudentName,
			strconv.Itoa(e.Rank),
			strconv.Itoa(e.Score),
			strconv.Itoa(e.SessionsAttended),
			strconv.Itoa(e.SessionsHeld),
			strconv.FormatFloat(e.AttendanceRate*100, 'f', 1, 64),
			strconv.Itoa(e.ParticipationTotal),
		})
	}
	return table
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "course"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
