package constants

// Handle cache keys
const (
	// ThreadKey caches the shared conversation handle
	ThreadKey = "OPENAI_THREAD_KEY"
	// AgentKeyPrefix and AgentKeySuffix wrap the normalized role name
	AgentKeyPrefix = "OPENAI_"
	AgentKeySuffix = "_ASSISTANT_KEY"
)

// Assistant definitions
const (
	// DefaultFunctionName is the single function every pipeline agent declares
	DefaultFunctionName = "system_design"

	// ResponseInstructions is sent with every run so the final message is bare JSON
	ResponseInstructions = "Output the information as a structured JSON object without markdown code blocks. " +
		"Use exactly the fields declared for your role."
)

// Agent execution constants
const (
	// DefaultMaxToolRounds bounds how many times one run may pause for tool outputs
	DefaultMaxToolRounds = 5
)

// Discord constants
const (
	// DiscordMaxMessageLength is the maximum character limit for Discord messages
	DiscordMaxMessageLength = 2000

	// DiscordDesignCommand triggers a pipeline run from a message
	DiscordDesignCommand = "!design"
)

// Prompt source constants
const (
	// MaxPromptChars caps text pulled from a webpage before it becomes a prompt
	MaxPromptChars = 12000
)
