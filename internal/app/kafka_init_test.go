package app

import (
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestInitKafkaProducer_Disabled(t *testing.T) {
	if p := initKafkaProducer(nil, log.WithField("test", "kafka")); p != nil {
		t.Fatal("producer must be nil without brokers")
	}
	closeKafka(nil, log.WithField("test", "kafka"))
}

func TestInitKafkaProducer_UnreachableBrokerIsNotFatal(t *testing.T) {
	if p := initKafkaProducer([]string{"127.0.0.1:1"}, log.WithField("test", "kafka")); p != nil {
		closeKafka(p, log.WithField("test", "kafka"))
		t.Fatal("producer must be nil when brokers are unreachable")
	}
}
