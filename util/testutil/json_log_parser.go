package testutil

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// FindRecordInLog scans a JSON log, one object per line, for the
// last record whose DepositId is depositId and unmarshals it into
// obj. Lines that aren't JSON objects are skipped.
func FindRecordInLog(pathToLogFile, depositId string, obj interface{}) error {
	file, err := os.Open(pathToLogFile)
	if err != nil {
		return err
	}
	defer file.Close()
	line := findJsonLine(file, depositId)
	if len(line) == 0 {
		return fmt.Errorf("Deposit %s not found in %s", depositId, pathToLogFile)
	}
	return json.Unmarshal(line, obj)
}

// CountRecordsInLog returns the number of records for depositId.
func CountRecordsInLog(pathToLogFile, depositId string) (int, error) {
	file, err := os.Open(pathToLogFile)
	if err != nil {
		return 0, err
	}
	defer file.Close()
	count := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if lineDepositId(scanner.Bytes()) == depositId {
			count++
		}
	}
	return count, scanner.Err()
}

func findJsonLine(file io.Reader, depositId string) []byte {
	var found []byte
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		// Keep the last one, since it has the latest state.
		if lineDepositId(scanner.Bytes()) == depositId {
			found = append([]byte(nil), scanner.Bytes()...)
		}
	}
	return found
}

func lineDepositId(line []byte) string {
	record := struct {
		DepositId string
	}{}
	if err := json.Unmarshal(line, &record); err != nil {
		return ""
	}
	return record.DepositId
}
