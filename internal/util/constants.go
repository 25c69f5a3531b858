package util

const TimeFormat = "2006-01-02 15:04:05"

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// 题库持久化后端
const (
	BackendFile     = "file"
	BackendDatabase = "database"
	BackendRedis    = "redis"
)

// 持久化键名，文件后端下即为文件名
const (
	KeyImportedQuestions = "ImportedQuestions.json"
	KeyImportedFormulas  = "ImportedFormulas.json"
	KeyQuestionHistory   = "QuestionHistory.json"
	KeyQuizSession       = "QuizSession.json"
	KeyQuizAttempts      = "QuizAttempts.json"
	KeyQuestionReports   = "QuestionReports.json"
	KeyImportReport      = "ImportReport.json"
)

// 解析相关
const (
	ExplanationPlaceholder = "—"
	MaxPositionalChoices   = 4
	MaxHeaderChoices       = 6
)

const (
	MimeImage = "image/"
	MimeCSV   = "text/csv"
)

var (
	AllowedImageExtensions  = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".heic", ".bmp"}
	AllowedImportExtensions = []string{".csv", ".zip"}
)
