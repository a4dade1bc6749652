package editor

import "github.com/ZapDesk/ZapDesk/internal/models"

// defaultStep builds a step pre-filled with the prompt, field name and
// validation the dashboard seeds for each step type.
func defaultStep(stepType models.StepType) models.Step {
	step := models.Step{Type: stepType}

	switch stepType {
	case models.StepTypeWelcome:
		step.Prompt = "Olá! 👋 Seja bem-vindo ao nosso atendimento."
		step.SkipWait = true
	case models.StepTypeName:
		step.Prompt = "Qual é o seu nome?"
		step.FieldName = "nome_cliente"
		step.ErrorPrompt = "Desculpe, não entendi. Pode repetir seu nome?"
	case models.StepTypeEmail:
		step.Prompt = "Qual é o seu e-mail?"
		step.FieldName = "email_cliente"
		step.Validation = models.ValidationEmail
		step.ErrorPrompt = "Esse e-mail não parece válido. Pode conferir?"
	case models.StepTypePhone:
		step.Prompt = "Qual é o seu telefone com DDD?"
		step.FieldName = "telefone_cliente"
		step.Validation = models.ValidationPhone
		step.ErrorPrompt = "Não consegui reconhecer esse número. Pode enviar com DDD?"
	case models.StepTypeDate:
		step.Prompt = "Para qual data você quer agendar?"
		step.FieldName = "data_agendamento"
		step.Validation = models.ValidationDate
		step.ErrorPrompt = "Não entendi a data. Pode enviar no formato dia/mês?"
	case models.StepTypeMenu:
		step.Prompt = "Escolha uma das opções abaixo:"
		step.FieldName = "opcao_menu"
	case models.StepTypeLocation:
		step.Prompt = "Qual é o seu endereço?"
		step.FieldName = "endereco_cliente"
	case models.StepTypeQuestion:
		step.Prompt = "Como posso ajudar?"
	case models.StepTypeImage:
		step.MediaKind = models.StepTypeImage
	case models.StepTypeVideo:
		step.MediaKind = models.StepTypeVideo
	case models.StepTypeAudio:
		step.MediaKind = models.StepTypeAudio
	case models.StepTypeDocument:
		step.MediaKind = models.StepTypeDocument
	case models.StepTypeEnd:
		step.Prompt = "Obrigado pelo contato! Até logo. 👋"
	}

	return step
}
