package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/MalcolmMc23/Alumo/internal/models"
	"github.com/MalcolmMc23/Alumo/internal/providers/llm"
	"github.com/MalcolmMc23/Alumo/internal/utils"

	"github.com/sirupsen/logrus"
)

const (
	SystemPrompt = "You are a helpful AI assistant for Alumo, a career center platform that helps college students with job searches and connecting with alumni. " +
		"Provide helpful, concise, and accurate responses. When users ask about job opportunities, job searches, or express interest in finding a job, provide appropriate job listings. " +
		"If the user uploads a resume, analyze it thoroughly and provide constructive feedback on format, content, skills, and opportunities for improvement, then suggest relevant job matches based on their qualifications. " +
		"Format answers in short paragraphs or bullet lists."

	resumeAnalysisPrompt = "You are an experienced career coach reviewing a college student's resume. " +
		"Give constructive feedback on format, content and skills, point out the strongest parts, list concrete improvements, and suggest the kinds of roles the candidate is a good match for."

	FallbackReply     = "I'm here to help with your job search and career questions. How can I assist you today?"
	fallbackJobsIntro = "I found some job listings that might interest you:\n\n"
	jobsIntro         = "\n\nHere are some job listings that might interest you:\n\n"
	resumeUploadHint  = "\n\nI don't see a resume on your profile yet. Upload one (PDF, DOC, DOCX, TXT or HTML) from your profile page and I can tailor my feedback and job matches to it."

	maxResumeContext = 12000
	maxHistory       = 100
)

type JobListing struct {
	Company  string `json:"company"`
	Position string `json:"position"`
	Salary   string `json:"salary"`
}

// JobListings is the fixed sample shown for job-related questions.
var JobListings = []JobListing{
	{Company: "Nike", Position: "Senior Software Engineer", Salary: "$300K per year"},
	{Company: "Google", Position: "Product Manager", Salary: "$280K per year"},
	{Company: "Amazon", Position: "Data Scientist", Salary: "$250K per year"},
	{Company: "Apple", Position: "Machine Learning Engineer", Salary: "$320K per year"},
	{Company: "Microsoft", Position: "Cloud Solutions Architect", Salary: "$275K per year"},
}

var jobKeywords = []string{
	"job", "career", "employment", "work", "position", "hiring", "opportunit",
	"internship", "search for jobs", "find jobs", "job search", "looking for a role",
}

var resumeUploadPhrases = []string{
	"upload my resume", "upload a resume", "upload resume", "uploaded my resume",
	"review my resume", "look at my resume", "check my resume", "my cv", "attach my resume",
	"resume feedback", "feedback on my resume",
}

// IsJobQuery reports whether a user message asks about jobs.
func IsJobQuery(message string) bool {
	return containsAny(strings.ToLower(message), jobKeywords)
}

// MentionsResumeUpload reports whether a user message talks about sharing a resume.
func MentionsResumeUpload(message string) bool {
	return containsAny(strings.ToLower(message), resumeUploadPhrases)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func formatJobListings() string {
	lines := make([]string, len(JobListings))
	for i, j := range JobListings {
		lines[i] = "- " + j.Company + ": " + j.Position + " (" + j.Salary + ")"
	}
	return strings.Join(lines, "\n")
}

type ChatReply struct {
	Message string        `json:"message"`
	History []llm.Message `json:"history"`
}

type ChatService interface {
	Reply(ctx context.Context, user *models.User, message string, history []llm.Message) (*ChatReply, error)
	AnalyzeResume(ctx context.Context, resumeText string) (string, error)
}

type chatService struct {
	llm llm.Provider
	log *logrus.Logger
}

func NewChatService(p llm.Provider, l *logrus.Logger) ChatService {
	return &chatService{llm: p, log: l}
}

func (s *chatService) Reply(ctx context.Context, user *models.User, message string, history []llm.Message) (*ChatReply, error) {
	const op = "ChatService.Reply"

	if strings.TrimSpace(message) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "Message is required", nil)
	}
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	for _, m := range history {
		if !models.ValidRole(m.Role) {
			return nil, utils.E(utils.CodeInvalidArgument, op, "history roles must be user, assistant or system", nil)
		}
	}

	msgs := make([]llm.Message, 0, len(history)+3)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: SystemPrompt})
	resumeText := user.ResumeContext()
	if strings.TrimSpace(resumeText) != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: resumeSystemMessage(resumeText)})
	}
	msgs = append(msgs, history...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: message})

	jobQuery := IsJobQuery(message)

	var reply string
	answer, err := s.llm.Complete(ctx, msgs)
	if err != nil {
		entry := s.log.WithError(err).WithField("op", op)
		if user != nil {
			entry = entry.WithField("user_id", user.ID)
		}
		entry.Error("chat completion failed, using fallback")

		reply = FallbackReply
		if jobQuery {
			reply = fallbackJobsIntro + formatJobListings()
		}
	} else {
		reply = answer
		if jobQuery {
			reply += jobsIntro + formatJobListings()
		}
	}

	if resumeText == "" && MentionsResumeUpload(message) {
		reply += resumeUploadHint
	}

	return &ChatReply{
		Message: reply,
		History: append(msgs, llm.Message{Role: llm.RoleAssistant, Content: reply}),
	}, nil
}

func resumeSystemMessage(text string) string {
	if utf8.RuneCountInString(text) > maxResumeContext {
		text = string([]rune(text)[:maxResumeContext])
	}
	return "The user has shared their resume. Use it to personalize advice and job matches.\n\nResume:\n" + text
}

func (s *chatService) AnalyzeResume(ctx context.Context, resumeText string) (string, error) {
	const op = "ChatService.AnalyzeResume"

	resumeText = strings.TrimSpace(resumeText)
	if resumeText == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "resume content is required", nil)
	}
	if utf8.RuneCountInString(resumeText) > maxResumeContext {
		resumeText = string([]rune(resumeText)[:maxResumeContext])
	}

	out, err := s.llm.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: resumeAnalysisPrompt},
		{Role: llm.RoleUser, Content: "Please analyze this resume:\n\n" + resumeText},
	})
	if err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "resume analysis is temporarily unavailable", err)
	}
	return out, nil
}
