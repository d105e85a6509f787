package services

import (
	"context"
	"fmt"
	"math"

	"gorm.io/gorm"
)

// BMIResult is the body-mass-index widget payload.
type BMIResult struct {
	Value    float64 `json:"value"`
	Category string  `json:"category"`
}

// BMRResult is the basal-metabolic-rate widget payload (kcal/day).
type BMRResult struct {
	Value float64 `json:"value"`
}

// Link is one external resource shown on the dashboard.
type Link struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// QuickPrompt is a canned conversation starter for the chat view.
type QuickPrompt struct {
	Label  string `json:"label"`
	Prompt string `json:"prompt"`
}

// Suggestion is one canned recipe or workout card on the dashboard.
type Suggestion struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// DashboardService computes the dashboard widgets from the onboarding
// profile: BMI with its category, BMR via the Mifflin-St Jeor equation, a
// platform-appropriate nearby-gyms map link, and the static shopping,
// recipe, workout, and quick-prompt lists.
type DashboardService struct {
	DB       *gorm.DB
	Profiles *ProfileService
}

// BMI computes weight / height² for the user's profile, rounded to one
// decimal, with the standard category cutoffs (18.5 / 25 / 30).
func (s *DashboardService) BMI(ctx context.Context, userID string) (*BMIResult, error) {
	p, err := s.Profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	h := p.HeightCM / 100
	v := math.Round(p.WeightKG/(h*h)*10) / 10

	var cat string
	switch {
	case v < 18.5:
		cat = "Underweight"
	case v < 25:
		cat = "Normal"
	case v < 30:
		cat = "Overweight"
	default:
		cat = "Obese"
	}
	return &BMIResult{Value: v, Category: cat}, nil
}

// BMR computes daily resting calories with Mifflin-St Jeor:
// 10·weight + 6.25·height − 5·age, plus 5 for men and minus 161 otherwise.
func (s *DashboardService) BMR(ctx context.Context, userID string) (*BMRResult, error) {
	p, err := s.Profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	v := 10*p.WeightKG + 6.25*p.HeightCM - 5*float64(p.Age)
	if p.Gender == "male" {
		v += 5
	} else {
		v -= 161
	}
	return &BMRResult{Value: math.Round(v)}, nil
}

// GymsURL builds a nearby-gyms map link for the caller's platform. iOS gets a
// maps:// deep link, Android a geo: intent URI, and everything else a Google
// Maps web search centered on the coordinates.
func (s *DashboardService) GymsURL(lat, lng float64, platform string) string {
	switch platform {
	case "ios":
		return fmt.Sprintf("maps://search/?q=gym&sll=%f,%f&z=14", lat, lng)
	case "android":
		return fmt.Sprintf("geo:%f,%f?q=gym", lat, lng)
	default:
		return fmt.Sprintf("https://www.google.com/maps/search/gym/@%f,%f,14z", lat, lng)
	}
}

// ShoppingLinks returns the fitness-gear shopping destinations.
func (s *DashboardService) ShoppingLinks() []Link {
	return []Link{
		{Label: "Fitness Gear on Amazon", URL: "https://www.amazon.com/s?k=fitness+equipment"},
		{Label: "Workout Apparel", URL: "https://www.amazon.com/s?k=workout+clothes"},
		{Label: "Supplements", URL: "https://www.amazon.com/s?k=protein+supplements"},
		{Label: "Healthy Groceries", URL: "https://www.amazon.com/s?k=healthy+snacks"},
	}
}

// QuickRecipes returns the static recipe cards.
func (s *DashboardService) QuickRecipes() []Suggestion {
	return []Suggestion{
		{Name: "Protein Smoothie", Description: "Blend banana, protein powder, almond milk, and berries."},
		{Name: "Greek Yogurt Bowl", Description: "Greek yogurt topped with honey, nuts, and fresh fruit."},
		{Name: "Avocado Toast", Description: "Whole grain toast with mashed avocado, salt, pepper, and a poached egg."},
	}
}

// QuickWorkouts returns the static workout cards.
func (s *DashboardService) QuickWorkouts() []Suggestion {
	return []Suggestion{
		{Name: "HIIT Circuit", Description: "30s jumping jacks, 30s pushups, 30s squats, 30s plank. Repeat 5x."},
		{Name: "Morning Stretch", Description: "5 min gentle stretching routine to wake up your body."},
		{Name: "Core Blast", Description: "5 min plank variations followed by 5 min of different ab exercises."},
	}
}

// QuickPrompts returns the canned conversation starters shown above the chat
// input.
func (s *DashboardService) QuickPrompts() []QuickPrompt {
	return []QuickPrompt{
		{Label: "🏋️ Workout Plan", Prompt: "Create a personalized workout plan for me"},
		{Label: "🥗 Meal Ideas", Prompt: "Suggest healthy meal ideas for my goal"},
		{Label: "🧘 Mental Wellness", Prompt: "Give me tips for reducing stress and improving mental wellness"},
		{Label: "💤 Better Sleep", Prompt: "How can I improve my sleep quality?"},
	}
}
