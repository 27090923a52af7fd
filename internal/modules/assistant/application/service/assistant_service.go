package service

import (
	"context"
	"strings"
	"time"

	"ilpotaxi/internal/modules/assistant/domain/session"
	"ilpotaxi/pkg/zlog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

// systemPrompt is the consultant persona shown to the chat model. Client
// facing text stays in Russian.
const systemPrompt = `Ты - ИИ-консультант ILPO-TAXI, первого в России умного таксопарка. Твоя задача - помочь водителям и курьерам подключиться ТОЛЬКО к ILPO-TAXI.

КЛЮЧЕВАЯ ИНФОРМАЦИЯ ILPO-TAXI:
• Таксопарк с самой низкой комиссией в России (1,5-7%)
• Подключение за 24 часа для водителей, 2-4 часа для курьеров
• Круглосуточная поддержка
• Собственный автопарк в аренду от 1200₽/сутки (если пользователь с Пензы)
• Офис: г. Пенза, ул. Калинина 128А к2

УСЛУГИ ТОЛЬКО ILPO-TAXI:
1. Подключение к Яндекс.Такси (водители)
2. Подключение к Яндекс.Доставке (курьеры)
3. Грузовые перевозки (водители с грузовым транспортом)
4. Аренда автомобилей (только для Пензы)

ТРЕБОВАНИЯ ДЛЯ ВОДИТЕЛЕЙ: возраст от 21 года, стаж вождения от 3 лет, паспорт РФ, водительское удостоверение, СТС.
ТРЕБОВАНИЯ ДЛЯ КУРЬЕРОВ: возраст от 18 лет, паспорт РФ, справка о несудимости, собственный транспорт (авто, мото, велосипед, пешком).

ЗАРАБОТОК: водители 80-120 тысяч рублей в месяц, курьеры 50-80 тысяч, грузовые перевозки 100-150 тысяч. Ежедневные выплаты.

СТИЛЬ: дружелюбный и профессиональный, отвечай кратко и конкретно, используй эмодзи умеренно, структурируй ответы списками.

ВАЖНО: всегда предлагай заполнить форму заявки по ссылке /signup или связаться с менеджером ILPO-TAXI по номеру +7 996 807-37-43.

КРИТИЧЕСКИ ВАЖНО: НИКОГДА не упоминай, не рекомендуй и не давай контакты других таксопарков. Ты работаешь ТОЛЬКО для ILPO-TAXI!`

// fallbackReply keeps the web chat alive when the model is down.
const fallbackReply = "🤖 Сейчас у меня технические неполадки, но я все равно помогу! Спрашивайте о документах, заработке, условиях работы или подключении к ILPO-TAXI. Что интересует больше всего?"

// historyWindow bounds how many session turns go into the prompt.
const historyWindow = 20

type AssistantService interface {
	// Reply answers a client turn. The turn is recorded in the session even
	// when the model fails; the fallback text is returned in that case.
	Reply(ctx context.Context, sessionID, userText string) (string, error)
}

type assistantServiceImpl struct {
	store *session.Store
	cm    model.BaseChatModel
}

// NewAssistantService accepts a nil chat model; replies then degrade to the
// fallback text.
func NewAssistantService(store *session.Store, cm model.BaseChatModel) AssistantService {
	return &assistantServiceImpl{store: store, cm: cm}
}

func (s *assistantServiceImpl) Reply(ctx context.Context, sessionID, userText string) (string, error) {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return "", nil
	}

	now := time.Now()
	if !s.store.Append(sessionID, session.Turn{Role: "user", Text: userText, At: now}) {
		s.store.Create(sessionID, "", "")
		s.store.Append(sessionID, session.Turn{Role: "user", Text: userText, At: now})
	}

	answer := s.generate(ctx, sessionID)
	s.store.Append(sessionID, session.Turn{Role: "assistant", Text: answer, At: time.Now()})
	return answer, nil
}

func (s *assistantServiceImpl) generate(ctx context.Context, sessionID string) string {
	if s.cm == nil {
		return fallbackReply
	}

	history := s.store.History(sessionID)
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	msgs := make([]*schema.Message, 0, len(history)+1)
	msgs = append(msgs, &schema.Message{Role: schema.System, Content: systemPrompt})
	for _, turn := range history {
		role := schema.User
		if turn.Role == "assistant" {
			role = schema.Assistant
		}
		msgs = append(msgs, &schema.Message{Role: role, Content: turn.Text})
	}

	resp, err := s.cm.Generate(ctx, msgs)
	if err != nil {
		zlog.Error("assistant generate failed", zap.String("session", sessionID), zap.Error(err))
		return fallbackReply
	}
	if strings.TrimSpace(resp.Content) == "" {
		return fallbackReply
	}
	return resp.Content
}
