package produce

import amqp "github.com/rabbitmq/amqp091-go"

type Produce struct {
	AuditService *AuditService
}

var produceInstance *Produce

func InitProduce(channel *amqp.Channel) *Produce {
	if produceInstance != nil {
		return produceInstance
	}

	auditService := InitAuditService(channel)
	if auditService == nil {
		panic("Failed to initialize Audit service")
	}

	produceInstance = &Produce{
		AuditService: auditService,
	}

	return produceInstance
}

func GetProduce() *Produce {
	if produceInstance == nil {
		panic("Produce not initialized. Call InitProduce() first.")
	}
	return produceInstance
}
