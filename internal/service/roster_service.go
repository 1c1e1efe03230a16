package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/noah-isme/course-workflow-api/internal/models"
	"github.com/noah-isme/course-workflow-api/pkg/database"
	appErrors "github.com/noah-isme/course-workflow-api/pkg/errors"
	"github.com/noah-isme/course-workflow-api/pkg/export"
)

type rosterEnrollmentRepository interface {
	ListDetails(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error)
	LockByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.Enrollment, error)
	SetGrades(ctx context.Context, exec sqlx.ExtContext, updates []models.GradeUpdate) (int64, error)
}

type rosterCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// RosterConfig limits roster uploads.
type RosterConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
}

// RosterFile is a rendered roster ready to be served.
type RosterFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

type rosterLine struct {
	number int
	row    models.RosterRow
}

// RosterService exchanges grade spreadsheets for approved enrollments.
type RosterService struct {
	enrollments rosterEnrollmentRepository
	courses     rosterCourseReader
	tx          database.TxBeginner
	metrics     *MetricsService
	events      *EventPublisher
	logger      *zap.Logger
	config      RosterConfig
	csv         *export.CSVExporter
	xlsx        *export.XLSXExporter
	pdf         *export.PDFExporter
	tracer      trace.Tracer
}

// NewRosterService constructs RosterService.
func NewRosterService(enrollments rosterEnrollmentRepository, courses rosterCourseReader, tx database.TxBeginner, metrics *MetricsService, events *EventPublisher, logger *zap.Logger, config RosterConfig) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = 5 * 1024 * 1024
	}
	if len(config.AllowedMIMEs) == 0 {
		config.AllowedMIMEs = []string{export.MIMECSV, export.MIMEXLSX}
	}
	return &RosterService{
		enrollments: enrollments,
		courses:     courses,
		tx:          tx,
		metrics:     metrics,
		events:      events,
		logger:      logger,
		config:      config,
		csv:         export.NewCSVExporter(),
		xlsx:        export.NewXLSXExporter("Roster"),
		pdf:         export.NewPDFExporter(),
		tracer:      otel.Tracer("github.com/noah-isme/course-workflow-api/internal/service/roster"),
	}
}

// Rows returns one roster row per approved enrollment of the course.
func (s *RosterService) Rows(ctx context.Context, caller models.Caller, courseID string) (*models.Course, []models.RosterRow, error) {
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, nil, err
	}
	if !course.HasInstructor(caller.ID) {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only course instructors may export its roster")
	}
	details, err := s.enrollments.ListDetails(ctx, models.EnrollmentFilter{
		CourseID: courseID,
		Status:   models.EnrollmentStatusApproved,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	if len(details) == 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrNoEligibleStudents, "")
	}
	rows := make([]models.RosterRow, 0, len(details))
	for _, detail := range details {
		row := models.RosterRow{
			EnrollmentID: detail.ID,
			StudentName:  detail.StudentFullName(),
			StudentEmail: detail.StudentEmail,
		}
		if detail.Grade != nil {
			row.Grade = *detail.Grade
		}
		rows = append(rows, row)
	}
	return course, rows, nil
}

// Export renders the roster in the requested format.
func (s *RosterService) Export(ctx context.Context, caller models.Caller, courseID string, format export.Format) (*RosterFile, error) {
	ctx, span := s.tracer.Start(ctx, "roster.export")
	span.SetAttributes(attribute.String("course.id", courseID), attribute.String("roster.format", string(format)))
	defer span.End()

	course, rows, err := s.Rows(ctx, caller, courseID)
	if err != nil {
		return nil, spanFail(span, err)
	}
	dataset := rosterDataset(rows)

	var data []byte
	switch format {
	case export.FormatXLSX:
		data, err = s.xlsx.Render(dataset)
	case export.FormatPDF:
		data, err = s.pdf.Render(dataset, fmt.Sprintf("%s %s roster", course.CourseCode, course.CourseName))
	case export.FormatCSV, "":
		format = export.FormatCSV
		data, err = s.csv.Render(dataset)
	default:
		return nil, spanFail(span, appErrors.Clone(appErrors.ErrValidation, "unsupported roster format"))
	}
	if err != nil {
		return nil, spanFail(span, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster"))
	}
	span.SetAttributes(attribute.Int("roster.rows", len(rows)))

	return &RosterFile{
		Filename:    fmt.Sprintf("roster_%s.%s", sanitizeFilename(course.CourseCode), format),
		ContentType: format.ContentType(),
		Data:        data,
	}, nil
}

// Import reads an uploaded csv or xlsx roster and applies its grades.
func (s *RosterService) Import(ctx context.Context, caller models.Caller, courseID string, data []byte) (*models.RosterImportResult, error) {
	ctx, span := s.tracer.Start(ctx, "roster.import")
	span.SetAttributes(attribute.String("course.id", courseID), attribute.Int("roster.bytes", len(data)))
	defer span.End()

	if len(data) == 0 {
		return nil, spanFail(span, appErrors.Clone(appErrors.ErrValidation, "roster file is empty"))
	}
	if int64(len(data)) > s.config.MaxFileSize {
		return nil, spanFail(span, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("roster file exceeds %d bytes", s.config.MaxFileSize)))
	}
	format, mimeType, err := export.Detect(data)
	if err != nil || !s.mimeAllowed(mimeType) {
		return nil, spanFail(span, appErrors.WithDetails(appErrors.ErrValidation, "roster file type not allowed", map[string]string{"mimeType": mimeType}))
	}
	table, err := export.ReadTable(format, data)
	if err != nil {
		return nil, spanFail(span, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "roster file could not be read"))
	}
	lines, err := parseRosterTable(table)
	if err != nil {
		return nil, spanFail(span, err)
	}
	result, err := s.importLines(ctx, caller, courseID, lines)
	if err != nil {
		return nil, spanFail(span, err)
	}
	return result, nil
}

// ImportRows applies grades from already decoded rows. Rows are numbered from 2, after the header.
func (s *RosterService) ImportRows(ctx context.Context, caller models.Caller, courseID string, rows []models.RosterRow) (*models.RosterImportResult, error) {
	lines := make([]rosterLine, len(rows))
	for i, row := range rows {
		lines[i] = rosterLine{number: i + 2, row: row}
	}
	return s.importLines(ctx, caller, courseID, lines)
}

func (s *RosterService) importLines(ctx context.Context, caller models.Caller, courseID string, lines []rosterLine) (*models.RosterImportResult, error) {
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "roster has no rows")
	}
	teaches := course.HasInstructor(caller.ID)

	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		if id := strings.TrimSpace(line.row.EnrollmentID); id != "" {
			ids = append(ids, id)
		}
	}
	ids = uniqueStrings(ids)

	var rowErrors []models.RosterRowError
	result := &models.RosterImportResult{CourseID: courseID, Rows: len(lines)}

	err = database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		byID := make(map[string]models.Enrollment, len(ids))
		if len(ids) > 0 {
			enrollments, err := s.enrollments.LockByIDs(ctx, tx, ids)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
			}
			for _, enrollment := range enrollments {
				byID[enrollment.ID] = enrollment
			}
		}

		seen := make(map[string]struct{}, len(lines))
		updates := make([]models.GradeUpdate, 0, len(lines))
		for _, line := range lines {
			id := strings.TrimSpace(line.row.EnrollmentID)
			reason := rowReason(id, seen, byID, courseID, teaches)
			if id != "" {
				seen[id] = struct{}{}
			}
			if reason != "" {
				rowErrors = append(rowErrors, models.RosterRowError{Row: line.number, EnrollmentID: id, Reason: reason})
				continue
			}
			updates = append(updates, models.GradeUpdate{EnrollmentID: id, Grade: strings.TrimSpace(line.row.Grade)})
		}
		if len(rowErrors) > 0 {
			return appErrors.WithDetails(appErrors.ErrRowImport,
				fmt.Sprintf("%d of %d roster rows were rejected", len(rowErrors), len(lines)), rowErrors)
		}

		updated, err := s.enrollments.SetGrades(ctx, tx, updates)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store grades")
		}
		if int(updated) != len(updates) {
			return appErrors.Clone(appErrors.ErrInvariantViolation, "grade written to an enrollment that is no longer approved")
		}
		result.Updated = int(updated)
		return nil
	})
	if err != nil {
		s.metrics.RecordRosterRows("rejected", len(rowErrors))
		return nil, appErrors.FromError(err)
	}

	s.metrics.RecordRosterRows("updated", result.Updated)
	s.logger.Info("roster grades imported",
		zap.String("caller_id", caller.ID),
		zap.String("course_id", courseID),
		zap.Int("rows", result.Rows),
		zap.Int("updated", result.Updated),
	)
	s.events.Publish(ctx, WorkflowEvent{
		Type:     EventRosterImported,
		ActorID:  caller.ID,
		CourseID: courseID,
		Count:    result.Updated,
	})
	return result, nil
}

func rowReason(id string, seen map[string]struct{}, byID map[string]models.Enrollment, courseID string, teaches bool) models.RosterRowReason {
	if id == "" {
		return models.RosterReasonMissingEnrollmentID
	}
	if _, dup := seen[id]; dup {
		return models.RosterReasonDuplicateRow
	}
	enrollment, ok := byID[id]
	switch {
	case !ok:
		return models.RosterReasonEnrollmentNotFound
	case enrollment.Status != models.EnrollmentStatusApproved:
		return models.RosterReasonEnrollmentNotApproved
	case enrollment.CourseID != courseID:
		return models.RosterReasonCourseMismatch
	case !teaches:
		return models.RosterReasonNotCourseInstructor
	}
	return ""
}

func (s *RosterService) loadCourse(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

func (s *RosterService) mimeAllowed(mimeType string) bool {
	for _, allowed := range s.config.AllowedMIMEs {
		if strings.EqualFold(strings.TrimSpace(allowed), mimeType) {
			return true
		}
	}
	return false
}

// parseRosterTable checks the header and drops blank rows while keeping spreadsheet row numbers.
func parseRosterTable(table [][]string) ([]rosterLine, error) {
	if len(table) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "roster header row is missing")
	}
	header := table[0]
	if len(header) < len(models.RosterColumns) {
		return nil, rosterHeaderError(header)
	}
	for i, column := range models.RosterColumns {
		if !strings.EqualFold(strings.TrimSpace(header[i]), column) {
			return nil, rosterHeaderError(header)
		}
	}

	lines := make([]rosterLine, 0, len(table)-1)
	for i, record := range table[1:] {
		if blankRecord(record) {
			continue
		}
		lines = append(lines, rosterLine{
			number: i + 2,
			row: models.RosterRow{
				EnrollmentID: strings.TrimSpace(record[0]),
				StudentName:  strings.TrimSpace(record[1]),
				StudentEmail: strings.TrimSpace(record[2]),
				Grade:        strings.TrimSpace(record[3]),
			},
		})
	}
	return lines, nil
}

func rosterHeaderError(header []string) error {
	return appErrors.WithDetails(appErrors.ErrValidation, "roster header must be "+strings.Join(models.RosterColumns, ","),
		map[string]interface{}{"expected": models.RosterColumns, "received": header})
}

func blankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func rosterDataset(rows []models.RosterRow) export.Dataset {
	dataset := export.Dataset{Headers: models.RosterColumns, Rows: make([]map[string]string, 0, len(rows))}
	for _, row := range rows {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"enrollment_id": row.EnrollmentID,
			"student_name":  row.StudentName,
			"student_email": row.StudentEmail,
			"grade":         row.Grade,
		})
	}
	return dataset
}

func sanitizeFilename(raw string) string {
	raw = strings.TrimSpace(raw)
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
