package apperror

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

var (
	supported = []language.Tag{language.BrazilianPortuguese, language.English}
	matcher   = language.NewMatcher(supported)
	messages  = catalog.NewBuilder(catalog.Fallback(language.BrazilianPortuguese))
)

var ptBR = map[Code]string{
	CodeUnknown:               "Erro inesperado.",
	CodeInvalidRequest:        "Requisição inválida.",
	CodeInvalidCPF:            "CPF inválido. Deve conter 11 dígitos e ser válido segundo as regras brasileiras.",
	CodeInvalidCPFFormat:      "tutorial_id e CPF válido são obrigatórios.",
	CodeInvalidBirthday:       "Formato de data inválido para data de nascimento. Use DD/MM/AAAA.",
	CodeAttendeeDataRequired:  "Nome, e-mail e data de nascimento são obrigatórios para novos participantes.",
	CodeInvalidToken:          "UUID inválido.",
	CodeInvalidDates:          "A data de início deve ser anterior à data de fim.",
	CodeInvalidVacancies:      "O tutorial deve ter pelo menos uma vaga.",
	CodeInvalidSignerOrder:    "A ordem de exibição deve ser um inteiro positivo.",
	CodeTitleRequired:         "O título é obrigatório.",
	CodeInvalidTemplate:       "Modelo de certificado inválido.",
	CodeInvalidImage:          "Imagem inválida: use jpg, png, webp ou gif de até 5MB.",
	CodeInvalidEmail:          "Endereço de e-mail inválido.",
	CodeInvalidName:           "O nome deve ter no máximo 255 caracteres.",
	CodeAlreadySubscribed:     "Este participante já está inscrito neste tutorial.",
	CodeNoVacancies:           "Não há vagas disponíveis para este tutorial.",
	CodeConfirmationFull:      "As vagas deste tutorial foram preenchidas por inscrições confirmadas antes da sua. Sua inscrição continua pendente e não pôde ser confirmada.",
	CodeScheduleConflict:      "O participante não está disponível para este tutorial.",
	CodeTutorialStarted:       "Este tutorial já começou.",
	CodeNotSubscribed:         "O participante não está inscrito neste tutorial.",
	CodeSlugTaken:             "Já existe um evento com este slug.",
	CodeCPFTaken:              "Já existe um participante com este CPF.",
	CodeNoCertificateTemplate: "O evento não possui modelo de certificado.",
	CodeNotConfirmed:          "A inscrição não foi confirmada.",
	CodeNotPresent:            "O participante não foi marcado como presente.",
	CodeCertificateMissing:    "O certificado ainda não foi gerado.",
	CodeCertificateBusy:       "O certificado desta inscrição já está sendo gerado.",
	CodeInvalidTransition:     "Transição de estado inválida para esta inscrição.",
	CodeInvalidCredentials:    "E-mail ou senha inválidos.",
	CodeUnauthenticated:       "Autenticação necessária.",
	CodeForbidden:             "Permissão insuficiente.",
	CodeEmailTaken:            "Já existe um operador com este e-mail.",
	CodeEventNotFound:         "Evento não encontrado.",
	CodeTutorialNotFound:      "Tutorial com este ID não existe.",
	CodeAttendeeNotFound:      "Participante com este CPF não existe.",
	CodeRegistrationNotFound:  "Inscrição não encontrada.",
	CodeInstructorNotFound:    "Instrutor não encontrado.",
	CodeSignerNotFound:        "Assinante não encontrado.",
	CodeFileNotFound:          "Arquivo não encontrado.",
	CodeConversionFailed:      "Falha ao gerar o documento do certificado.",
	CodeDeliveryFailed:        "Falha ao enviar o e-mail.",
	CodeStorageFailed:         "Falha ao acessar o armazenamento de arquivos.",
}

var en = map[Code]string{
	CodeUnknown:               "Unexpected error.",
	CodeInvalidRequest:        "Invalid request.",
	CodeInvalidCPF:            "Invalid CPF. It must have 11 digits and pass the Brazilian checksum rules.",
	CodeInvalidCPFFormat:      "tutorial_id and correct cpf are required.",
	CodeInvalidBirthday:       "Invalid date format for birthday. Use DD/MM/YYYY.",
	CodeAttendeeDataRequired:  "Name, email, and birthday are required for new attendees.",
	CodeInvalidToken:          "Invalid UUID.",
	CodeInvalidDates:          "The start date must be before the end date.",
	CodeInvalidVacancies:      "A tutorial must have at least one vacancy.",
	CodeInvalidSignerOrder:    "Display order must be a positive integer.",
	CodeTitleRequired:         "Title is required.",
	CodeInvalidTemplate:       "Invalid certificate template.",
	CodeInvalidImage:          "Invalid image: use jpg, png, webp or gif up to 5MB.",
	CodeInvalidEmail:          "Invalid email address.",
	CodeInvalidName:           "Name must be at most 255 characters.",
	CodeAlreadySubscribed:     "This attendee is already subscribed to this tutorial.",
	CodeNoVacancies:           "There are no vacancies available for this tutorial.",
	CodeConfirmationFull:      "This tutorial was filled by registrations confirmed before yours. Your registration stays pending and could not be confirmed.",
	CodeScheduleConflict:      "The attendee is not available for this tutorial.",
	CodeTutorialStarted:       "This tutorial has already started.",
	CodeNotSubscribed:         "Attendee is not subscribed to this tutorial.",
	CodeSlugTaken:             "An event with this slug already exists.",
	CodeCPFTaken:              "An attendee with this CPF already exists.",
	CodeNoCertificateTemplate: "The event has no certificate template.",
	CodeNotConfirmed:          "The registration is not confirmed.",
	CodeNotPresent:            "The attendee was not marked as present.",
	CodeCertificateMissing:    "The certificate has not been generated yet.",
	CodeCertificateBusy:       "A certificate is already being generated for this registration.",
	CodeInvalidTransition:     "Invalid state transition for this registration.",
	CodeInvalidCredentials:    "Invalid email or password.",
	CodeUnauthenticated:       "Authentication required.",
	CodeForbidden:             "Insufficient permissions.",
	CodeEmailTaken:            "An operator with this email already exists.",
	CodeEventNotFound:         "Event not found.",
	CodeTutorialNotFound:      "Tutorial with this ID does not exist.",
	CodeAttendeeNotFound:      "Attendee with this CPF does not exist.",
	CodeRegistrationNotFound:  "Registration not found.",
	CodeInstructorNotFound:    "Instructor not found.",
	CodeSignerNotFound:        "Signer not found.",
	CodeFileNotFound:          "File not found.",
	CodeConversionFailed:      "Failed to render the certificate document.",
	CodeDeliveryFailed:        "Failed to send the email.",
	CodeStorageFailed:         "Failed to access file storage.",
}

func init() {
	for code, msg := range ptBR {
		_ = messages.SetString(language.BrazilianPortuguese, string(code), msg)
	}
	for code, msg := range en {
		_ = messages.SetString(language.English, string(code), msg)
	}
}

// Localize returns the user-facing message for err in the best language for acceptLanguage.
// Non-domain errors render as CodeUnknown.
func Localize(err error, acceptLanguage string) string {
	code := CodeOf(err)
	if _, ok := ptBR[code]; !ok {
		code = CodeUnknown
	}
	return printerFor(acceptLanguage).Sprintf(string(code))
}

// LocalizeCode returns the message for code in the best language for acceptLanguage.
func LocalizeCode(code Code, acceptLanguage string) string {
	return printerFor(acceptLanguage).Sprintf(string(code))
}

func printerFor(acceptLanguage string) *message.Printer {
	tags, _, _ := language.ParseAcceptLanguage(acceptLanguage)
	_, idx, _ := matcher.Match(tags...)
	return message.NewPrinter(supported[idx], message.Catalog(messages))
}
