package testutil

import (
	"encoding/json"
	"fmt"
	"github.com/APTrust/deposit/constants"
	"github.com/APTrust/deposit/models"
	"github.com/google/uuid"
	"github.com/icrowley/fake"
	"github.com/nsqio/go-nsq"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MakeNsqMessage returns an NSQ message with the specified body.
// The message has no delegate, so don't call Touch, Finish or
// Requeue on it. Use MakeNsqMessageWithDelegate for that.
func MakeNsqMessage(body string) *nsq.Message {
	messageId := [nsq.MsgIDLength]byte{'1', '2', '3', '4', '5', '6', '7', '8', '9', '0', 'a', 's', 'd', 'f', 'g', 'h'}
	return nsq.NewMessage(messageId, []byte(body))
}

// MakeNsqMessageWithDelegate returns an NSQ message whose Touch,
// Finish and Requeue calls go to delegate.
func MakeNsqMessageWithDelegate(body string, delegate nsq.MessageDelegate) *nsq.Message {
	message := MakeNsqMessage(body)
	message.Delegate = delegate
	return message
}

// MakeDepositId returns a new random deposit id.
func MakeDepositId() string {
	return uuid.New().String()
}

// MakeDepositStatus returns a status for a newly received deposit
// of the specified packaging type, with plausible random values in
// the descriptive fields.
func MakeDepositStatus(packagingType string) *models.DepositStatus {
	fields := map[string]string{
		constants.FieldPackagingType: packagingType,
		constants.FieldFileName:      strings.ToLower(fake.Word()) + ".xml",
		constants.FieldContainerId:   uuid.New().String(),
		constants.FieldDepositorName: fake.UserName(),
		constants.FieldState:         constants.StateReceived,
		constants.FieldStartTime:     time.Now().UTC().Format(constants.TimestampFormat),
	}
	return models.NewDepositStatus(MakeDepositId(), fields)
}

// MakeConfig returns a config for the bolt backend and the local
// dispatcher, with every directory under baseDir.
func MakeConfig(baseDir string) *models.Config {
	return &models.Config{
		ActiveConfig:      "test",
		DepositsDirectory: filepath.Join(baseDir, "deposits"),
		Dispatcher:        constants.DispatcherLocal,
		LocalJobWorker:    models.WorkerConfig{Workers: 4},
		LogDirectory:      filepath.Join(baseDir, "logs"),
		StatusBackend:     constants.BackendBolt,
		BoltDBPath:        filepath.Join(baseDir, "deposit_status.db"),
		StatusExpiry:      "1h",
		SupervisorWorker: models.WorkerConfig{
			HeartbeatInterval: "50ms",
			MaxAttempts:       3,
			MaxInFlight:       10,
			NsqChannel:        "deposit_supervisor_test",
			NsqTopic:          constants.TopicAdvance,
			Workers:           2,
		},
		ValidationTimeout: "5s",
	}
}

// WriteDepositGraph writes a deposit graph holding locations into the
// deposit's working directory under depositsDirectory, creating the
// directory if necessary. Returns the path of the graph file.
func WriteDepositGraph(depositsDirectory, depositId string, locations []models.StagingLocation) (string, error) {
	graph := models.DepositGraph{
		DepositId:  depositId,
		Statements: make([]models.Statement, 0, len(locations)),
	}
	for _, location := range locations {
		predicate := models.PredicateStagingLocation
		if location.Role == constants.RoleCleanupOnly {
			predicate = models.PredicateCleanupLocation
		}
		graph.Statements = append(graph.Statements, models.Statement{
			Subject:   fmt.Sprintf("info:deposit/%s", depositId),
			Predicate: predicate,
			Object:    location.URI,
		})
	}
	data, err := json.MarshalIndent(graph, "", "  ")
	if err != nil {
		return "", err
	}
	dir := filepath.Join(depositsDirectory, depositId)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, constants.DepositGraphFile)
	return path, os.WriteFile(path, data, 0644)
}

// WriteStagedFile creates a file at root/relPath with random content,
// creating parent directories as needed. Returns its absolute path.
func WriteStagedFile(root, relPath string) (string, error) {
	path := filepath.Join(root, relPath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}
	return path, os.WriteFile(path, []byte(fake.Paragraph()), 0644)
}

// FileURI returns a file:// URI for an absolute path.
func FileURI(path string) string {
	return "file://" + filepath.ToSlash(path)
}
