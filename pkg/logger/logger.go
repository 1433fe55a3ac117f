package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger wraps slog.Logger with additional functionality
type Logger struct {
	*slog.Logger
}

// New creates a logger writing to stdout at the level named by LOG_LEVEL
func New() *Logger {
	return NewWithWriter(os.Stdout, os.Getenv("LOG_LEVEL"))
}

// NewWithWriter creates a logger writing to w at the given level
func NewWithWriter(w io.Writer, levelStr string) *Logger {
	level := getLogLevel(levelStr)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	// Text output in gin debug mode, JSON everywhere else
	var handler slog.Handler
	if gin.Mode() == gin.DebugMode {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// Discard returns a logger that drops everything
func Discard() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// getLogLevel converts string to slog.Level
func getLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent tags every record with the emitting component
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("component", component)),
	}
}

// HTTP logging methods

// LogHTTPRequest logs an HTTP request
func (l *Logger) LogHTTPRequest(c *gin.Context, duration time.Duration) {
	l.Logger.InfoContext(c.Request.Context(),
		"HTTP Request",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("query", c.Request.URL.RawQuery),
		slog.Int("status", c.Writer.Status()),
		slog.Duration("duration", duration),
		slog.String("ip", c.ClientIP()),
		slog.String("user_agent", c.Request.UserAgent()),
		slog.Int("size", c.Writer.Size()),
	)
}

// LogHTTPError logs an HTTP error
func (l *Logger) LogHTTPError(c *gin.Context, err error, statusCode int) {
	l.Logger.ErrorContext(c.Request.Context(),
		"HTTP Error",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.Int("status", statusCode),
		slog.String("error", err.Error()),
		slog.String("ip", c.ClientIP()),
	)
}

// Ticket lifecycle logging methods

// LogTicketReserved logs a new reservation
func (l *Logger) LogTicketReserved(ctx context.Context, ticketID, ticketTypeID, customerEmail string, expiresAt time.Time) {
	l.Logger.InfoContext(ctx,
		"Ticket Reserved",
		slog.String("ticket_id", ticketID),
		slog.String("ticket_type_id", ticketTypeID),
		slog.String("customer_email", customerEmail),
		slog.Time("expires_at", expiresAt),
	)
}

// LogTicketPurchased logs a completed purchase
func (l *Logger) LogTicketPurchased(ctx context.Context, ticketID, ticketTypeID, paymentReference string) {
	l.Logger.InfoContext(ctx,
		"Ticket Purchased",
		slog.String("ticket_id", ticketID),
		slog.String("ticket_type_id", ticketTypeID),
		slog.String("payment_reference", paymentReference),
	)
}

// LogTicketCancelled logs a cancellation
func (l *Logger) LogTicketCancelled(ctx context.Context, ticketID, ticketTypeID, previousStatus string) {
	l.Logger.InfoContext(ctx,
		"Ticket Cancelled",
		slog.String("ticket_id", ticketID),
		slog.String("ticket_type_id", ticketTypeID),
		slog.String("previous_status", previousStatus),
	)
}

// LogTicketExpired logs a reservation that lapsed
func (l *Logger) LogTicketExpired(ctx context.Context, ticketID, ticketTypeID string) {
	l.Logger.InfoContext(ctx,
		"Ticket Expired",
		slog.String("ticket_id", ticketID),
		slog.String("ticket_type_id", ticketTypeID),
	)
}

// LogSweepCompleted logs one run of the expiry sweep
func (l *Logger) LogSweepCompleted(ctx context.Context, expired int, duration time.Duration) {
	level := slog.LevelDebug
	if expired > 0 {
		level = slog.LevelInfo
	}
	l.Logger.Log(ctx, level,
		"Expiry Sweep Completed",
		slog.Int("expired", expired),
		slog.Duration("duration", duration),
	)
}

// LogTransactionRetry logs a transaction attempt lost to contention
func (l *Logger) LogTransactionRetry(ctx context.Context, operation string, err error) {
	l.Logger.WarnContext(ctx,
		"Transaction Retry",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// Security logging methods

// LogRateLimitExceeded logs rate limit exceeded
func (l *Logger) LogRateLimitExceeded(ctx context.Context, ip, endpoint string) {
	l.Logger.WarnContext(ctx,
		"Rate Limit Exceeded",
		slog.String("ip", ip),
		slog.String("endpoint", endpoint),
	)
}

// Global logger instance (can be replaced with dependency injection)
var defaultLogger = New()

// GetDefault returns the default logger instance
func GetDefault() *Logger {
	return defaultLogger
}

// SetDefault sets the default logger instance
func SetDefault(logger *Logger) {
	defaultLogger = logger
}
