package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/2beens/mergington/pkg"
)

const defaultLogMaxSizeMB = 50

type LoggerSetupParams struct {
	LogFileName      string
	LogToStdout      bool
	LogLevel         string
	LogFormatJSON    bool
	LogMaxSizeMB     int
	Environment      string
	SentryEnabled    bool
	SentryDSN        string
	SentryServerName string
	// Fields are attached to every entry, e.g. the service name.
	Fields logrus.Fields
}

// Setup configures the global logrus logger. The returned func closes the
// rotating log file, if one is used.
func Setup(params LoggerSetupParams) func() {
	if params.LogFormatJSON {
		logrus.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	if len(params.Fields) > 0 {
		logrus.AddHook(newFieldsHook(params.Fields))
	}

	if params.SentryEnabled {
		err := sentry.Init(sentry.ClientOptions{
			Environment:      params.Environment,
			Dsn:              params.SentryDSN,
			TracesSampleRate: 1.0,
			ServerName:       params.SentryServerName,
		})
		if err != nil {
			logrus.Errorf("sentry.Init: %s", err)
		} else {
			logrus.AddHook(NewSentryHook([]logrus.Level{
				logrus.PanicLevel,
				logrus.FatalLevel,
				logrus.ErrorLevel,
			}))
			logrus.Infoln("Sentry set up successfully")
		}
	}

	logrus.SetLevel(GetLevel(params.LogLevel))

	if params.LogFileName == "" {
		logrus.SetOutput(os.Stdout)
		logrus.Println("writing logs only to STDOUT")
		return func() {}
	}

	if !strings.HasSuffix(params.LogFileName, ".log") {
		params.LogFileName += ".log"
	}
	if params.LogMaxSizeMB <= 0 {
		params.LogMaxSizeMB = defaultLogMaxSizeMB
	}

	lumberJackLogger := &lumberjack.Logger{
		Filename:  params.LogFileName,
		MaxSize:   params.LogMaxSizeMB,
		LocalTime: false, // UTC
		Compress:  true,
	}

	var out io.Writer = lumberJackLogger
	if params.LogToStdout {
		out = pkg.NewCombinedWriter(os.Stdout, lumberJackLogger)
		logrus.Println("writing logs to file and STDOUT")
	}
	logrus.SetOutput(out)

	return func() {
		logrus.SetOutput(os.Stdout)
		if err := lumberJackLogger.Close(); err != nil {
			logrus.Errorf("close log file: %s", err)
		}
	}
}

// GetLevel parses a level name, falling back to trace for unknown names.
func GetLevel(level string) logrus.Level {
	parsed, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return logrus.TraceLevel
	}
	return parsed
}

type fieldsHook struct {
	fields logrus.Fields
}

func newFieldsHook(fields logrus.Fields) *fieldsHook {
	copied := make(logrus.Fields, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return &fieldsHook{fields: copied}
}

func (h *fieldsHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *fieldsHook) Fire(entry *logrus.Entry) error {
	for k, v := range h.fields {
		if _, set := entry.Data[k]; !set {
			entry.Data[k] = v
		}
	}
	return nil
}
