package constant

// Escalation trigger reasons, in evaluation order.
const (
	EscalationReasonMediaRedirect = "media_redirect"
	EscalationReasonHumanRequest  = "human_request"
	EscalationReasonFrustration   = "frustration"
)

// Notification lifecycle.
const (
	NotificationStatusPending   = "pending"
	NotificationStatusAttending = "attending"

	NotificationStatusProvidedHelp    = "provided_help"
	NotificationStatusIgnored         = "ignored"
	NotificationStatusWrongActivation = "wrong_activation"
)

// Operator control vocabulary, delivered over the same channel as
// customer messages.
const (
	OperatorTakeBackValue  = "take_back_to_bot"
	ResolveCommandPrefix   = "resolve_"
	NonChatNotificationRef = "system" // sentinel chat session ref for non-chat notifications
)

// HumanRequestKeywords are matched lowercase, language-aware.
var HumanRequestKeywords = map[string][]string{
	"es": {"hablar con un humano", "hablar con una persona", "quiero un humano", "atencion humana", "un asesor", "una persona real"},
	"en": {"talk to a human", "speak to a human", "talk to a person", "real person", "human agent", "speak with someone"},
	"pt": {"falar com um humano", "falar com uma pessoa", "atendente humano", "uma pessoa real"},
}

// FrustrationKeywords feed the frustration trigger; a minimum count of
// matching user turns within the lookback window is required (configured,
// not inferred).
var FrustrationKeywords = map[string][]string{
	"es": {"no sirve", "no funciona", "inutil", "pesimo", "que mal servicio", "estoy harto", "estoy harta", "basura"},
	"en": {"useless", "this is ridiculous", "doesn't work", "terrible", "worst", "i'm fed up", "garbage"},
	"pt": {"nao funciona", "inutil", "pessimo", "que servico ruim", "estou farto"},
}

// EscalationAck is the immediate customer-facing acknowledgement, keyed
// by preference language. Spanish is the product default.
var EscalationAck = map[string]string{
	"es": "Entendido, en un momento una persona de nuestro equipo continuará la conversación contigo.",
	"en": "Understood, a member of our team will continue this conversation with you shortly.",
	"pt": "Entendido, em instantes uma pessoa da nossa equipe continuará a conversa com você.",
}

// Attachment types the bot has no handling path for (escalate) versus
// types it simply ignores.
var (
	RedirectMediaTypes  = []string{"image", "video", "audio", "document", "location"}
	IgnorableMediaTypes = []string{"sticker", "reaction", "contacts"}
)

const DefaultLanguage = "es"
