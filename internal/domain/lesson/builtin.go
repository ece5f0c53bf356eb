package lesson

// Builtin is the lesson module shipped with the binary.
func Builtin() Module {
	return Module{
		Name: "Teacher Sam's First Words",
		Lessons: []Lesson{
			{
				ID:          "hello-en",
				Title:       "Saying Hello",
				Language:    "en",
				AgeGroup:    "3-6 years",
				Description: "Teacher Sam says hello and asks your name.",
				Phrases: []Phrase{
					{Text: "Hello! I'm Teacher Sam.", Gesture: "wave"},
					{Text: "What's your name?", Gesture: "think"},
					{Text: "Nice to meet you!", Gesture: "cheer"},
					{Text: "Goodbye! See you soon.", Gesture: "wave"},
				},
			},
			{
				ID:          "colores-es",
				Title:       "Los Colores",
				Language:    "es",
				AgeGroup:    "4-8 years",
				Description: "Learn five colours in Spanish.",
				Phrases: []Phrase{
					{Text: "¡Hola! Vamos a aprender los colores.", Translation: "Hello! Let's learn the colours.", Gesture: "wave"},
					{Text: "Rojo", Translation: "Red"},
					{Text: "Azul", Translation: "Blue"},
					{Text: "Verde", Translation: "Green"},
					{Text: "Amarillo", Translation: "Yellow"},
					{Text: "Morado", Translation: "Purple"},
					{Text: "¡Muy bien!", Translation: "Very good!", Gesture: "cheer"},
				},
			},
			{
				ID:          "animaux-fr",
				Title:       "Les Animaux",
				Language:    "fr",
				AgeGroup:    "4-8 years",
				Description: "Farm animals in French.",
				Phrases: []Phrase{
					{Text: "Bonjour les amis !", Translation: "Hello friends!", Gesture: "wave"},
					{Text: "Le chat", Translation: "The cat"},
					{Text: "Le chien", Translation: "The dog"},
					{Text: "La vache", Translation: "The cow"},
					{Text: "Le cochon", Translation: "The pig"},
					{Text: "Bravo !", Translation: "Well done!", Gesture: "cheer"},
				},
			},
		},
	}
}
