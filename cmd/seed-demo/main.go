package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/modexam-backend/internal/config"
	"github.com/stemsi/modexam-backend/internal/database"
	"github.com/stemsi/modexam-backend/internal/logger"
	"github.com/stemsi/modexam-backend/internal/model"
	"github.com/stemsi/modexam-backend/internal/repository"
	"github.com/stemsi/modexam-backend/internal/service"
)

// seed-demo creates two small modules, a practice test built from them and
// assigns it to a range of demo students.
func main() {
	students := flag.Int("students", 10, "number of demo students (user1..userN)")
	attempts := flag.Int("attempts", 2, "attempts granted per student")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	questionRepo := repository.NewQuestionRepository(pool)
	moduleRepo := repository.NewModuleRepository(pool)
	testRepo := repository.NewTestRepository(pool)
	assignRepo := repository.NewAssignmentRepository(pool)

	questionService := service.NewQuestionService(pool, questionRepo, moduleRepo, log)
	testService := service.NewTestService(testRepo, moduleRepo, rdb, log)
	assignmentService := service.NewAssignmentService(assignRepo, testRepo, log)

	fmt.Println("=== Seeding demo content ===")

	reading, err := seedModule(ctx, questionService, "Reading and Writing", "reading", demoReading)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to seed reading module")
	}
	math, err := seedModule(ctx, questionService, "Math", "math", demoMath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to seed math module")
	}

	test, err := testService.Create(ctx, model.SaveTestRequest{
		Title:       "Demo Practice Test",
		Description: "Two short modules separated by a break.",
		Level:       1,
		Order: []model.Step{
			{Kind: model.StepKindModule, Time: "32:00", ModuleUID: reading.String()},
			{Kind: model.StepKindBreak, Time: "10:00"},
			{Kind: model.StepKindModule, Time: "35:00", ModuleUID: math.String()},
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create test")
	}
	fmt.Printf("Created test %s\n", test.UID)

	successCount := 0
	for i := 1; i <= *students; i++ {
		userID := fmt.Sprintf("user%d", i)
		if _, err := assignmentService.SetAttempts(ctx, userID, test.UID, *attempts); err != nil {
			fmt.Printf("Error assigning %s: %v\n", userID, err)
			continue
		}
		successCount++
	}

	fmt.Printf("\nSeed completed! Assigned the test to %d/%d students.\n", successCount, *students)
}

type demoQuestion struct {
	prompt  string
	choices [4]string
	answer  string
}

var demoReading = []demoQuestion{
	{"Which choice completes the text with the most logical transition?", [4]string{"However", "For example", "Similarly", "Therefore"}, "a"},
	{"Which choice best states the main purpose of the text?", [4]string{"To criticize", "To describe", "To compare", "To persuade"}, "b"},
	{"Which choice conforms to the conventions of Standard English?", [4]string{"its", "it's", "its'", "it is'"}, "a"},
}

var demoMath = []demoQuestion{
	{"If 3x + 5 = 20, what is x?", [4]string{"3", "5", "15", "25"}, "b"},
	{"What is the slope of y = -2x + 7?", [4]string{"7", "2", "-2", "-7"}, "c"},
}

func seedModule(ctx context.Context, qs *service.QuestionService, title, section string, items []demoQuestion) (uuid.UUID, error) {
	uids := make([]uuid.UUID, 0, len(items))
	for i, item := range items {
		choices := make([]model.Choice, len(item.choices))
		for j, content := range item.choices {
			choices[j] = model.Choice{Seq: string(rune('a' + j)), Content: content}
		}
		q, err := qs.CreateQuestion(ctx, model.CreateQuestionRequest{
			ManageTitle: fmt.Sprintf("%s #%d", title, i+1),
			Section:     section,
			Type:        string(model.QuestionTypeMultipleChoice),
			Level:       1,
			Prompt:      item.prompt,
			Choices:     choices,
			Answer:      item.answer,
		})
		if err != nil {
			return uuid.Nil, err
		}
		uids = append(uids, q.UID)
	}

	m, err := qs.CreateModule(ctx, model.CreateModuleRequest{
		Title:     title,
		Section:   section,
		Level:     1,
		Questions: uids,
	})
	if err != nil {
		return uuid.Nil, err
	}
	fmt.Printf("Created module %q with %d questions\n", title, len(uids))
	return m.UID, nil
}
