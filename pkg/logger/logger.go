package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level representa o nível de log
type Level int

const (
	// DEBUG nível para mensagens detalhadas de depuração
	DEBUG Level = iota
	// INFO nível para informações gerais
	INFO
	// WARN nível para avisos
	WARN
	// ERROR nível para erros
	ERROR
	// FATAL nível para erros fatais (encerra o programa)
	FATAL
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

// String retorna o nome do nível
func (l Level) String() string {
	if l < DEBUG || l > FATAL {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel converte o nome do nível (ex.: "debug", "WARN") em Level
func ParseLevel(name string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return DEBUG, nil
	case "INFO", "":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	case "FATAL":
		return FATAL, nil
	}
	return INFO, fmt.Errorf("nível de log desconhecido: %q", name)
}

var (
	logLevel = INFO

	// saídas base (terminal) e arquivos opcionais
	logOutput     io.Writer = os.Stdout
	errorOutput   io.Writer = os.Stderr
	fileOutput    io.WriteCloser
	fileOutputErr io.WriteCloser

	timeFormat = "2006-01-02 15:04:05.000"

	// stdLogger recebe DEBUG/INFO/WARN; errLogger recebe ERROR/FATAL
	stdLogger = log.New(logOutput, "", 0)
	errLogger = log.New(errorOutput, "", 0)

	includeFile = true

	// exitFunc é chamado após uma mensagem FATAL
	exitFunc = os.Exit

	mu sync.Mutex
)

// Init restaura as saídas padrão do terminal
func Init() {
	mu.Lock()
	defer mu.Unlock()
	rebuild()
}

// rebuild recria os loggers a partir das saídas atuais. Chamar com mu travado.
func rebuild() {
	out, errOut := logOutput, errorOutput
	if fileOutput != nil {
		out = io.MultiWriter(logOutput, fileOutput)
	}
	if fileOutputErr != nil {
		errOut = io.MultiWriter(errorOutput, fileOutputErr)
	}
	stdLogger = log.New(out, "", 0)
	errLogger = log.New(errOut, "", 0)
}

// SetLevel define o nível mínimo de log
func SetLevel(level Level) {
	mu.Lock()
	defer mu.Unlock()
	logLevel = level
}

// GetLevel retorna o nível atual de log
func GetLevel() Level {
	mu.Lock()
	defer mu.Unlock()
	return logLevel
}

// IsDebugEnabled verifica se o nível de debug está habilitado
func IsDebugEnabled() bool {
	return GetLevel() <= DEBUG
}

// SetOutput define a saída para todos os logs (inclusive erros)
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	logOutput = w
	errorOutput = w
	rebuild()
}

// SetIncludeFile liga ou desliga o arquivo:linha de origem em cada entrada
func SetIncludeFile(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	includeFile = enabled
}

// EnableFileLogging habilita o log para arquivo. Erros também vão para um
// arquivo separado com sufixo _error.
func EnableFileLogging(logDir, prefix string) error {
	mu.Lock()

	if err := os.MkdirAll(logDir, 0755); err != nil {
		mu.Unlock()
		return fmt.Errorf("erro ao criar diretório de log: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	if prefix != "" {
		prefix = prefix + "_"
	}

	logFilePath := filepath.Join(logDir, fmt.Sprintf("%s%s.log", prefix, timestamp))
	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		mu.Unlock()
		return fmt.Errorf("erro ao criar arquivo de log: %w", err)
	}

	errFilePath := filepath.Join(logDir, fmt.Sprintf("%s%s_error.log", prefix, timestamp))
	errFile, err := os.OpenFile(errFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logFile.Close()
		mu.Unlock()
		return fmt.Errorf("erro ao criar arquivo de log de erro: %w", err)
	}

	closeFiles()
	fileOutput = logFile
	fileOutputErr = errFile
	rebuild()
	mu.Unlock()

	Infof("Logging em arquivo iniciado: %s", logFilePath)
	return nil
}

// closeFiles fecha os arquivos de log abertos. Chamar com mu travado.
func closeFiles() {
	if fileOutput != nil {
		fileOutput.Close()
		fileOutput = nil
	}
	if fileOutputErr != nil {
		fileOutputErr.Close()
		fileOutputErr = nil
	}
}

// Sync fecha os arquivos de log e volta a escrever só no terminal
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	closeFiles()
	rebuild()
}

// logMessage escreve uma mensagem de log com o nível especificado
func logMessage(level Level, format string, args ...interface{}) {
	mu.Lock()
	if level < logLevel {
		mu.Unlock()
		return
	}
	target := stdLogger
	if level >= ERROR {
		target = errLogger
	}
	withFile := includeFile
	timestamp := time.Now().Format(timeFormat)
	mu.Unlock()

	var source string
	if withFile {
		if _, file, line, ok := runtime.Caller(2); ok {
			source = fmt.Sprintf(" [%s:%d]", filepath.Base(file), line)
		}
	}

	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}

	target.Printf("[%s] %-5s%s: %s", timestamp, level, source, msg)

	if level == FATAL {
		exitFunc(1)
	}
}

// Debug escreve mensagem de log com nível DEBUG
func Debug(msg string) {
	logMessage(DEBUG, "%s", msg)
}

// Debugf escreve mensagem de log formatada com nível DEBUG
func Debugf(format string, args ...interface{}) {
	logMessage(DEBUG, format, args...)
}

// Info escreve mensagem de log com nível INFO
func Info(msg string) {
	logMessage(INFO, "%s", msg)
}

// Infof escreve mensagem de log formatada com nível INFO
func Infof(format string, args ...interface{}) {
	logMessage(INFO, format, args...)
}

// Warn escreve mensagem de log com nível WARN
func Warn(msg string) {
	logMessage(WARN, "%s", msg)
}

// Warnf escreve mensagem de log formatada com nível WARN
func Warnf(format string, args ...interface{}) {
	logMessage(WARN, format, args...)
}

// Error escreve mensagem de log com nível ERROR
func Error(msg string, err error) {
	if err != nil {
		logMessage(ERROR, "%s: %v", msg, err)
	} else {
		logMessage(ERROR, "%s", msg)
	}
}

// Errorf escreve mensagem de log formatada com nível ERROR
func Errorf(format string, args ...interface{}) {
	logMessage(ERROR, format, args...)
}

// Fatal escreve mensagem de log com nível FATAL e encerra o programa
func Fatal(msg string, err error) {
	if err != nil {
		logMessage(FATAL, "%s: %v", msg, err)
	} else {
		logMessage(FATAL, "%s", msg)
	}
}

// Fatalf escreve mensagem de log formatada com nível FATAL e encerra o programa
func Fatalf(format string, args ...interface{}) {
	logMessage(FATAL, format, args...)
}
