package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/medjeex/exam-engine/internal/cache"
	"github.com/medjeex/exam-engine/internal/models"
	"github.com/medjeex/exam-engine/internal/repositories"
	"github.com/medjeex/exam-engine/internal/utils"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ImportService loads a paper's question bank from CSV or Excel files
// prepared by content authors.
type ImportService interface {
	ImportQuestionsFromFile(ctx context.Context, file multipart.File, filename, testPaperID string) (*ImportResult, error)
	ImportQuestionsFromCSV(ctx context.Context, reader io.Reader, testPaperID string) (*ImportResult, error)
	ImportQuestionsFromExcel(ctx context.Context, reader io.Reader, testPaperID string) (*ImportResult, error)
}

type importService struct {
	repo      repositories.Repository
	cache     cache.CacheService
	logger    *slog.Logger
	validator *utils.Validator
}

func NewImportService(repo repositories.Repository, cacheService cache.CacheService, logger *slog.Logger, validator *utils.Validator) ImportService {
	return &importService{
		repo:      repo,
		cache:     cacheService,
		logger:    logger,
		validator: validator,
	}
}

type ImportResult struct {
	TestPaperID   string                         `json:"test_paper_id"`
	TotalRows     int                            `json:"total_rows"`
	ProcessedRows int                            `json:"processed_rows"`
	SuccessCount  int                            `json:"success_count"`
	ErrorCount    int                            `json:"error_count"`
	Errors        []models.ImportValidationError `json:"errors,omitempty"`
	Status        models.ImportStatus            `json:"status"`
}

var requiredImportColumns = []string{"subject", "question_type", "question", "correct_answer"}

func (s *importService) ImportQuestionsFromFile(ctx context.Context, file multipart.File, filename, testPaperID string) (*ImportResult, error) {
	s.logger.Info("Starting question import", "filename", filename, "test_paper_id", testPaperID)

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".csv":
		return s.ImportQuestionsFromCSV(ctx, file, testPaperID)
	case ".xlsx", ".xls":
		return s.ImportQuestionsFromExcel(ctx, file, testPaperID)
	default:
		return nil, fmt.Errorf("%w: unsupported file format %q", ErrValidationFailed, ext)
	}
}

func (s *importService) ImportQuestionsFromCSV(ctx context.Context, reader io.Reader, testPaperID string) (*ImportResult, error) {
	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	return s.importRows(ctx, records, testPaperID)
}

func (s *importService) ImportQuestionsFromExcel(ctx context.Context, reader io.Reader, testPaperID string) (*ImportResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: Excel file has no sheets", ErrValidationFailed)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read Excel rows: %w", err)
	}
	return s.importRows(ctx, rows, testPaperID)
}

// importRows is the shared CSV/Excel path: header row first, one
// question per data row.
func (s *importService) importRows(ctx context.Context, rows [][]string, testPaperID string) (*ImportResult, error) {
	if testPaperID == "" {
		return nil, fmt.Errorf("%w: test_paper_id is required", ErrValidationFailed)
	}
	if _, err := s.repo.TestPaper().GetByID(ctx, nil, testPaperID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestPaperNotFound
		}
		return nil, NewStorageError("load test paper", err)
	}

	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: file must have a header row and at least one data row", ErrValidationFailed)
	}

	headerMap := make(map[string]int)
	for i, header := range rows[0] {
		headerMap[strings.ToLower(strings.TrimSpace(header))] = i
	}
	for _, col := range requiredImportColumns {
		if _, exists := headerMap[col]; !exists {
			return nil, fmt.Errorf("%w: missing required column %q", ErrValidationFailed, col)
		}
	}

	result := &ImportResult{
		TestPaperID: testPaperID,
		TotalRows:   len(rows) - 1,
		Status:      models.ImportProcessing,
	}

	var questions []*models.Question
	for rowIndex, row := range rows[1:] {
		question, rowErrors := s.parseRow(row, headerMap, rowIndex+2, testPaperID)
		if len(rowErrors) > 0 {
			result.Errors = append(result.Errors, rowErrors...)
			result.ErrorCount++
		} else {
			question.Position = len(questions)
			questions = append(questions, question)
			result.SuccessCount++
		}
		result.ProcessedRows++
	}

	if len(questions) > 0 {
		err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
			return s.repo.Question().CreateBatch(ctx, tx, questions)
		})
		if err != nil {
			return nil, NewStorageError("save imported questions", err)
		}

		// The paper's cached snapshot is stale now.
		if s.cache != nil {
			if err := s.cache.Delete(ctx, snapshotCacheKey(testPaperID)); err != nil {
				s.logger.Warn("Failed to invalidate question cache",
					"test_paper_id", testPaperID, "error", err)
			}
		}
	}

	result.Status = models.ImportCompleted

	s.logger.Info("Question import completed",
		"test_paper_id", testPaperID,
		"total_rows", result.TotalRows,
		"success_count", result.SuccessCount,
		"error_count", result.ErrorCount)

	return result, nil
}

// ===== ROW PARSING =====

func (s *importService) parseRow(record []string, headerMap map[string]int, rowNum int, testPaperID string) (*models.Question, []models.ImportValidationError) {
	var rowErrors []models.ImportValidationError

	getColumn := func(name string) string {
		if index, exists := headerMap[name]; exists && index < len(record) {
			return strings.TrimSpace(record[index])
		}
		return ""
	}
	fail := func(column, message, value string) {
		rowErrors = append(rowErrors, models.ImportValidationError{
			Row: rowNum, Column: column, Message: message, Value: value,
		})
	}

	questionID := getColumn("question_id")
	if questionID == "" {
		questionID = uuid.NewString()
	}

	format := models.FormatText
	if v := getColumn("question_format"); v != "" {
		format = models.QuestionFormat(strings.ToLower(v))
	}

	marks := 4.0
	if v := getColumn("marks"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed < 0 {
			fail("marks", "must be a non-negative number", v)
		} else {
			marks = parsed
		}
	}

	negative := 0.0
	if v := getColumn("negative_marking"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			fail("negative_marking", "must be a number", v)
		} else {
			negative = parsed
		}
	}

	question := &models.Question{
		QuestionID:      questionID,
		TestPaperID:     testPaperID,
		Subject:         getColumn("subject"),
		QuestionType:    models.QuestionType(strings.ToLower(getColumn("question_type"))),
		QuestionFormat:  format,
		Question:        getColumn("question"),
		Marks:           marks,
		NegativeMarking: negative,
	}

	options, correctAnswer, typeErrors := parseAnswerColumns(question.QuestionType, getColumn, rowNum)
	rowErrors = append(rowErrors, typeErrors...)
	question.CorrectAnswer = correctAnswer

	if len(options) > 0 {
		optionsJSON, err := json.Marshal(options)
		if err != nil {
			fail("options", "failed to serialize options", "")
		} else {
			question.Options = optionsJSON
		}
	}

	if err := s.validator.Validate(question); err != nil {
		fail("row", err.Error(), "")
	}

	if len(rowErrors) > 0 {
		return nil, rowErrors
	}
	return question, nil
}

var optionColumns = []string{"option_a", "option_b", "option_c", "option_d"}

// parseAnswerColumns reads the option cells and correct answer for one
// row. Choice questions reference options by letter ("A" or "A,C");
// integer questions carry the numeric answer directly and need no
// options.
func parseAnswerColumns(questionType models.QuestionType, getColumn func(string) string, rowNum int) ([]models.QuestionOption, string, []models.ImportValidationError) {
	var rowErrors []models.ImportValidationError
	fail := func(column, message, value string) {
		rowErrors = append(rowErrors, models.ImportValidationError{
			Row: rowNum, Column: column, Message: message, Value: value,
		})
	}

	correctAnswerStr := getColumn("correct_answer")

	if questionType == models.Integer {
		if _, err := strconv.ParseFloat(correctAnswerStr, 64); err != nil {
			fail("correct_answer", "must be numeric for integer questions", correctAnswerStr)
		}
		return nil, correctAnswerStr, rowErrors
	}

	var options []models.QuestionOption
	for _, colName := range optionColumns {
		if text := getColumn(colName); text != "" {
			options = append(options, models.QuestionOption{
				Value:  text,
				Format: models.FormatText,
			})
		}
	}
	if len(options) < 2 {
		fail("options", "choice questions must have at least 2 options", "")
		return nil, "", rowErrors
	}

	var indices []string
	for _, part := range strings.Split(strings.ToUpper(correctAnswerStr), ",") {
		part = strings.TrimSpace(part)
		if len(part) == 1 && part[0] >= 'A' && part[0] <= 'D' {
			index := int(part[0] - 'A')
			if index < len(options) {
				indices = append(indices, strconv.Itoa(index))
			}
		}
	}
	if len(indices) == 0 {
		fail("correct_answer", "must name at least one option letter (A-D)", correctAnswerStr)
		return options, "", rowErrors
	}
	if questionType == models.SingleCorrect && len(indices) > 1 {
		fail("correct_answer", "single-correct questions take exactly one answer", correctAnswerStr)
		return options, "", rowErrors
	}

	return options, strings.Join(indices, ","), rowErrors
}
