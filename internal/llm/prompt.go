package llm

var suggestionPrompts = map[string]string{
	"es": "Basado en esta imagen de un producto de supermercado, sugiere un nombre de producto conciso (máximo 5 palabras) " +
		"y una descripción corta (máximo 20 palabras). Devuelve un objeto JSON válido con las claves 'name' y 'description'. " +
		`Ejemplo: {"name": "Manzanas Orgánicas", "description": "Manzanas orgánicas frescas y crujientes, perfectas para picar."}`,
	"en": "Based on this image of a grocery product, suggest a concise product name (at most 5 words) " +
		"and a short description (at most 20 words). Return a valid JSON object with the keys 'name' and 'description'. " +
		`Example: {"name": "Organic Apples", "description": "Fresh, crisp organic apples, perfect for snacking."}`,
}

func promptFor(locale string) string {
	if p, ok := suggestionPrompts[locale]; ok {
		return p
	}
	return suggestionPrompts["es"]
}
