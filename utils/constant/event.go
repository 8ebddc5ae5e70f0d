package constant

// log messages for broker, rpc and replication events
const (
	// transport lifecycle
	TransportConnecting   = "TransportConnecting"
	TransportConnected    = "TransportConnected"
	TransportRetrying     = "TransportRetrying"
	TransportDraining     = "TransportDraining"
	TransportDisconnected = "TransportDisconnected"
	ConnectionClosed      = "ConnectionClosed"

	// queues and deliveries
	QueueDeclared       = "QueueDeclared"
	ReplyQueueDeclared  = "ReplyQueueDeclared"
	ConsumerStarted     = "ConsumerStarted"
	ConsumerStopped     = "ConsumerStopped"
	EventPublished      = "EventPublished"
	EventPublishFailed  = "EventPublishFailed"
	EventReceived       = "EventReceived"
	EventRejected       = "EventRejected"
	EventRequeued       = "EventRequeued"
	MessageDropped      = "MessageDropped"
	DeliveryAckFailed   = "DeliveryAckFailed"
	HandlerPanicked     = "HandlerPanicked"
	ProcessingFailed    = "ProcessingFailed"
	MessageProcessed    = "MessageProcessed"
	UnknownCorrelation  = "UnknownCorrelation"
	ReplyPublishFailed  = "ReplyPublishFailed"
	CallTimedOut        = "CallTimedOut"
	ServeStarted        = "ServeStarted"
	BreakerStateChanged = "BreakerStateChanged"

	// replication
	RecordAppended    = "RecordAppended"
	RecordReplicated  = "RecordReplicated"
	RecordPending     = "RecordPending"
	RelayDrained      = "RelayDrained"
	RecordApplied     = "RecordApplied"
	RecordSkipped     = "RecordSkipped"
	RecordApplyFailed = "RecordApplyFailed"

	// gateway
	BackendIntrospected = "BackendIntrospected"
	SchemaComposed      = "SchemaComposed"
	BackendFailed       = "BackendFailed"
	CacheHit            = "CacheHit"
	CacheMiss           = "CacheMiss"
	CacheStoreFailed    = "CacheStoreFailed"
)

// log messages for HTTP servers, databases and process lifecycle
const (
	RequestIdentified = "RequestIdentified"
	IncomingRequest   = "IncomingRequest"
	ResponseDetails   = "ResponseDetails"
	ServerListening   = "ServerListening"
	ServerDraining    = "ServerDraining"
	ServerStopped     = "ServerStopped"

	DatabaseConnected = "DatabaseConnected"
	QueryStarted      = "QueryStarted"
	QueryFailed       = "QueryFailed"
	QueryFinished     = "QueryFinished"

	OplogInMemory = "OplogInMemory"
)

// message header keys carried alongside every envelope
const (
	HeaderCorrelationID = "Correlation-Id"
	HeaderReplyTo       = "Reply-To"
	HeaderMessageID     = "Message-Id"
	HeaderContentType   = "Content-Type"

	ContentTypeJSON     = "application/json"
	ContentTypeOpRecord = "application/x-oprecord"
)
