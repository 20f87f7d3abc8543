// Package transports imports every built-in transport for registration with
// the default registry.
package transports

import (
	_ "github.com/drblury/topicflow/transport/aws"
	_ "github.com/drblury/topicflow/transport/channel"
	_ "github.com/drblury/topicflow/transport/http"
	_ "github.com/drblury/topicflow/transport/io"
	_ "github.com/drblury/topicflow/transport/jetstream"
	_ "github.com/drblury/topicflow/transport/kafka"
	_ "github.com/drblury/topicflow/transport/nats"
	_ "github.com/drblury/topicflow/transport/rabbitmq"
)
