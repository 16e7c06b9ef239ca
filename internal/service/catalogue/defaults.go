package catalogue

// Defaults is the starter catalogue loaded into an empty store.
func Defaults() []RoomInput {
	return []RoomInput{
		{
			Name:              "Standard Room",
			Description:       "Comfortable room for 1-2 guests with essential amenities.",
			Capacity:          2,
			TotalUnits:        15,
			BasePricePerNight: 5000,
			Amenities:         []string{"Two single beds", "Private bathroom", "TV", "Wi-Fi", "Air conditioning", "In-room dining"},
			Rating:            ptr(3.8),
		},
		{
			Name:              "Deluxe Room",
			Description:       "Upgraded furnishings with extra comforts for up to 4 guests.",
			Capacity:          4,
			TotalUnits:        10,
			BasePricePerNight: 9000,
			Amenities:         []string{"California King bed", "Single bed", "Mini-refrigerator", "TV", "Wi-Fi", "Air conditioning", "Fitness center access"},
			Rating:            ptr(4.2),
		},
		{
			Name:              "Suite Room",
			Description:       "Spacious suite with separate living area and kitchenette.",
			Capacity:          4,
			TotalUnits:        10,
			BasePricePerNight: 12000,
			Amenities:         []string{"Two double beds", "Living room", "Kitchenette", "Welcome fruit basket"},
			Rating:            ptr(4.5),
		},
		{
			Name:              "Executive Room",
			Description:       "Premium room with business amenities and executive lounge access.",
			Capacity:          6,
			TotalUnits:        7,
			BasePricePerNight: 20000,
			Amenities:         []string{"Multiple beds", "Executive lounge", "Complimentary breakfast", "Business center", "Meeting rooms"},
			Rating:            ptr(4.7),
		},
		{
			Name:              "Penthouse",
			Description:       "Expansive space with a private balcony and butler service.",
			Capacity:          10,
			TotalUnits:        3,
			BasePricePerNight: 35000,
			Amenities:         []string{"Private balcony", "Private chef", "Jacuzzi", "Butler service"},
			Rating:            ptr(4.9),
		},
	}
}

func ptr[T any](v T) *T { return &v }

