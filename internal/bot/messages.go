package bot

import "fmt"

// User-facing replies. Every pipeline outcome maps to one of these; the
// orchestrator never surfaces a raw error to the chat platform.
const (
	// MsgAskSomething answers an empty or whitespace-only query.
	MsgAskSomething = "🤔 Por favor, envie uma pergunta para eu responder!"
	// MsgNoAnswer replaces a completion whose content is legitimately empty.
	MsgNoAnswer = "🤷 Não consegui gerar uma resposta."
	// MsgRemoteRateLimited answers a remote 429 that survived all retries.
	MsgRemoteRateLimited = "⚠️ Muitas requisições. Aguarde alguns segundos e tente novamente."
	// MsgConnectionError answers a connection failure that survived all retries.
	MsgConnectionError = "⚠️ Erro de conexão com a IA. Tente novamente em instantes."
	// MsgTimeout answers a completion call that exceeded the hard timeout.
	MsgTimeout = "⚠️ A IA demorou muito para responder. Tente novamente."
	// MsgEmptyResponse answers a completion with an empty choice list.
	MsgEmptyResponse = "⚠️ A IA retornou uma resposta vazia. Tente novamente."
)

// MsgRateLimited answers a request denied by the local admission gate.
func MsgRateLimited(requestsPerMinute int) string {
	return fmt.Sprintf(
		"⏱️ **Rate Limit Acionado**\n\n"+
			"Você atingiu o limite de **%d** requisições por minuto.\n\n"+
			"Aguarde um pouco e tente novamente. Seu limite será resetado em ~1 minuto.",
		requestsPerMinute,
	)
}

// MsgProcessingError answers any failure outside the known taxonomy.
func MsgProcessingError(detail string) string {
	return fmt.Sprintf("❌ Erro ao processar: %s", detail)
}
