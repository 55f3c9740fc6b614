// Copyright 2021-2024, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package genericconf

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

var globalFileLoggerFactory = fileLoggerFactory{}

type fileLoggerFactory struct {
	// writerMutex is to avoid parallel writes to the file-logger
	writerMutex sync.Mutex
	writer      *lumberjack.Logger

	cancel context.CancelFunc

	// writeStartPing and writeDonePing simulate a buffered channel of
	// records: a write is dropped when writeStartPing is full.
	writeStartPing chan struct{}
	writeDonePing  chan struct{}
}

// Write hands p to the rotating file writer unless BufSize writes are already
// pending, in which case p is dropped.
func (l *fileLoggerFactory) Write(p []byte) (n int, err error) {
	select {
	case l.writeStartPing <- struct{}{}:
		l.writerMutex.Lock()
		_, _ = l.writer.Write(p)
		l.writerMutex.Unlock()
		l.writeDonePing <- struct{}{}
	default:
	}
	return len(p), nil
}

// newFileWriter is not threadsafe
func (l *fileLoggerFactory) newFileWriter(config *FileLoggingConfig) io.Writer {
	l.close()
	l.writer = &lumberjack.Logger{
		Filename:   config.File,
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		LocalTime:  config.LocalTime,
		Compress:   config.Compress,
	}
	l.writeStartPing = make(chan struct{}, config.BufSize)
	l.writeDonePing = make(chan struct{}, config.BufSize)
	// capture copy
	writeStartPing := l.writeStartPing
	writeDonePing := l.writeDonePing
	var consumerCtx context.Context
	consumerCtx, l.cancel = context.WithCancel(context.Background())
	go func() {
		for {
			select {
			case <-writeStartPing:
				<-writeDonePing
			case <-consumerCtx.Done():
				return
			}
		}
	}()
	return l
}

// close is not threadsafe
func (l *fileLoggerFactory) close() error {
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	if l.writer != nil {
		if err := l.writer.Close(); err != nil {
			return err
		}
		l.writer = nil
	}
	return nil
}

// InitLog installs the default geth logger, writing to output and, when file
// logging is enabled, to a rotated log file as well. It is not threadsafe.
func InitLog(logType string, logLevel string, fileLoggingConfig *FileLoggingConfig, output io.Writer) error {
	// always close previous instance of file logger
	if err := globalFileLoggerFactory.close(); err != nil {
		return fmt.Errorf("failed to close file writer: %w", err)
	}
	if fileLoggingConfig != nil && fileLoggingConfig.Enable {
		output = io.MultiWriter(
			output,
			// on overflow writeStartPing are dropped silently
			globalFileLoggerFactory.newFileWriter(fileLoggingConfig),
		)
	}
	handler, err := HandlerFromLogType(logType, output)
	if err != nil {
		return fmt.Errorf("error parsing log type when creating handler: %w", err)
	}
	slogLevel, err := ToSlogLevel(logLevel)
	if err != nil {
		return fmt.Errorf("error parsing log level: %w", err)
	}

	glogger := log.NewGlogHandler(handler)
	glogger.Verbosity(slogLevel)
	log.SetDefault(log.NewLogger(glogger))
	return nil
}

// CloseLog flushes and closes the log file, if one was opened.
func CloseLog() error {
	return globalFileLoggerFactory.close()
}
