package helpers

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"sync"
	"time"

	"code.cloudfoundry.org/lager"
)

const dbURLPattern = `^(postgres|postgresql):\/\/(.+):(.+)@([\da-zA-Z\.-]+)(:[\d]{4,5})?\/(.+)`

// timestampedEntry adds an RFC3339 rendering of the lager unix timestamp to
// each log line.
type timestampedEntry struct {
	lager.LogFormat
	LogTime string `json:"log_time"`
}

func newTimestampedEntry(log lager.LogFormat) timestampedEntry {
	floatTime, err := strconv.ParseFloat(log.Timestamp, 64)
	if err != nil {
		floatTime = 0.0
	}
	return timestampedEntry{
		LogFormat: log,
		LogTime:   time.Unix(int64(floatTime), 0).Format(time.RFC3339),
	}
}

func (e timestampedEntry) toJSON() []byte {
	content, err := json.Marshal(e)
	if err != nil {
		_, unsupported := err.(*json.UnsupportedTypeError)
		_, marshaler := err.(*json.MarshalerError)
		if unsupported || marshaler {
			e.Data = map[string]interface{}{"lager serialisation error": err.Error(), "data_dump": fmt.Sprintf("%#v", e.Data)}
			content, err = json.Marshal(e)
		}
		if err != nil {
			panic(err)
		}
	}
	return content
}

// redactingSink writes lager entries as JSON after masking values matching
// the key patterns and credentials embedded in database URLs.
type redactingSink struct {
	writer         io.Writer
	minLogLevel    lager.LogLevel
	writeL         *sync.Mutex
	jsonRedacter   *lager.JSONRedacter
	urlCredMatcher *regexp.Regexp
}

func NewRedactingSink(writer io.Writer, minLogLevel lager.LogLevel, keyPatterns []string, valuePatterns []string) (lager.Sink, error) {
	jsonRedacter, err := lager.NewJSONRedacter(keyPatterns, valuePatterns)
	if err != nil {
		return nil, err
	}
	urlCredMatcher, err := regexp.Compile(dbURLPattern)
	if err != nil {
		return nil, err
	}
	return &redactingSink{
		writer:         writer,
		minLogLevel:    minLogLevel,
		writeL:         new(sync.Mutex),
		jsonRedacter:   jsonRedacter,
		urlCredMatcher: urlCredMatcher,
	}, nil
}

func (sink *redactingSink) Log(log lager.LogFormat) {
	if log.LogLevel < sink.minLogLevel {
		return
	}
	entry := newTimestampedEntry(log)
	sink.writeL.Lock()
	defer sink.writeL.Unlock()
	redacted := sink.redact(entry.toJSON())
	sink.writer.Write(redacted)
	sink.writer.Write([]byte("\n"))
}

func (sink *redactingSink) redact(data []byte) []byte {
	var jsonBlob interface{}
	err := json.Unmarshal(data, &jsonBlob)
	if err != nil {
		return handleRedactionError(err)
	}
	sink.redactValue(&jsonBlob)

	data, err = json.Marshal(jsonBlob)
	if err != nil {
		return handleRedactionError(err)
	}

	return sink.jsonRedacter.Redact(data)
}

func (sink *redactingSink) redactValue(data *interface{}) interface{} {
	if data == nil {
		return data
	}

	if a, ok := (*data).([]interface{}); ok {
		for i := range a {
			sink.redactValue(&a[i])
		}
	} else if m, ok := (*data).(map[string]interface{}); ok {
		for k, v := range m {
			m[k] = sink.redactValue(&v)
		}
	} else if s, ok := (*data).(string); ok {
		if sink.urlCredMatcher.MatchString(s) {
			(*data) = sink.urlCredMatcher.ReplaceAllString(s, `$1://$2:*REDACTED*@$4$5/$6`)
		}
	}
	return *data
}

func handleRedactionError(err error) []byte {
	var content []byte
	if _, ok := err.(*json.UnsupportedTypeError); ok {
		data := map[string]interface{}{"lager serialisation error": err.Error()}
		content, err = json.Marshal(data)
	}
	if err != nil {
		panic(err)
	}
	return content
}
